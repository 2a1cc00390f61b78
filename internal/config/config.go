package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	maxTxLimit      = 50
	minTxLimit      = 1
	maxCohortBlocks = 64
	minCohortBlocks = 1
	maxCohortTxCap  = 5000
	minCohortTxCap  = 1
	maxRateLimit    = 200
	minRateLimit    = 0
	minHTTPTimeout  = 100 * time.Millisecond
	maxHTTPTimeout  = 5 * time.Minute
	minCohortTTL    = time.Second
	maxCohortTTL    = time.Hour
)

// Config holds 12-factor environment configuration used across binaries.
type Config struct {
	MainnetURL string
	SepoliaURL string
	ListenAddr string

	// TxLimit is how many recent wallet transactions a scoring request covers.
	TxLimit int

	// Cohort sampling bounds (blocks sampled, global transaction cap).
	CohortBlocks int
	CohortTxCap  int

	RateLimit       int // explorer requests per second (0 = unlimited)
	HTTPRetries     int
	HTTPBackoffBase time.Duration
	HTTPTimeout     time.Duration

	RedisURL  string
	CohortTTL time.Duration

	// Explanation collaborator (chat-completions style API). Passed explicitly
	// to the explain client so the scoring engine stays independent of it.
	AIBaseURL string
	AIAPIKey  string
	AIModel   string
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

func parseDurEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampDuration(v, min, max time.Duration) time.Duration {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ExplorerURL returns the configured base URL for a network name, or "" when
// the network is unknown.
func (c Config) ExplorerURL(network string) string {
	switch strings.ToLower(network) {
	case "mainnet":
		return c.MainnetURL
	case "sepolia":
		return c.SepoliaURL
	}
	return ""
}

// Redact hides credentials in URL-like strings to avoid logging secrets.
func Redact(s string) string {
	if s == "" {
		return s
	}
	if u, err := url.Parse(s); err == nil && u.User != nil {
		if name := u.User.Username(); name != "" {
			u.User = url.UserPassword(name, "***")
		} else {
			u.User = url.User("***")
		}
		return u.String()
	}
	if i := strings.Index(s, "//"); i >= 0 {
		if j := strings.Index(s[i+2:], "@"); j > 0 {
			creds := s[i+2 : i+2+j]
			if k := strings.Index(creds, ":"); k >= 0 {
				return s[:i+2] + creds[:k] + ":***@" + s[i+2+j+1:]
			}
		}
	}
	return s
}

// Load reads environment variables and returns a Config with defaults applied.
func Load() Config {
	return Config{
		MainnetURL:      env("BLOCKSCOUT_MAINNET_URL", "https://eth.blockscout.com"),
		SepoliaURL:      env("BLOCKSCOUT_SEPOLIA_URL", "https://eth-sepolia.blockscout.com"),
		ListenAddr:      env("LISTEN_ADDR", ":8080"),
		TxLimit:         clampInt(parseIntEnv("TX_LIMIT", 3), minTxLimit, maxTxLimit),
		CohortBlocks:    clampInt(parseIntEnv("COHORT_BLOCKS", 12), minCohortBlocks, maxCohortBlocks),
		CohortTxCap:     clampInt(parseIntEnv("COHORT_TX_CAP", 600), minCohortTxCap, maxCohortTxCap),
		RateLimit:       clampInt(parseIntEnv("RATE_LIMIT", 0), minRateLimit, maxRateLimit),
		HTTPRetries:     parseIntEnv("HTTP_RETRIES", 2),
		HTTPBackoffBase: parseDurEnv("HTTP_BACKOFF_BASE", 100*time.Millisecond),
		HTTPTimeout:     clampDuration(parseDurEnv("HTTP_TIMEOUT", 30*time.Second), minHTTPTimeout, maxHTTPTimeout),
		RedisURL:        env("REDIS_URL", ""),
		CohortTTL:       clampDuration(parseDurEnv("COHORT_TTL", time.Minute), minCohortTTL, maxCohortTTL),
		AIBaseURL:       env("AI_BASE_URL", "https://api.asi1.ai"),
		AIAPIKey:        env("AI_API_KEY", ""),
		AIModel:         env("AI_MODEL", "asi1-mini"),
	}
}
