package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	cfgpkg "github.com/walletscope/txscore/internal/config"
	"github.com/walletscope/txscore/internal/cohortcache"
	"github.com/walletscope/txscore/internal/explain"
	"github.com/walletscope/txscore/internal/explorer"
	"github.com/walletscope/txscore/internal/logging"
	"github.com/walletscope/txscore/internal/server"
)

var (
	// version is set via -ldflags "-X main.version=..."
	version = "dev"
	exit    = os.Exit
	// serve is swappable so tests can exercise wiring without binding a port.
	serve = func(addr string, handler http.Handler) error {
		srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		return srv.ListenAndServe()
	}
)

func printUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), "\nUsage:\n  %s [flags]\n\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "Flags:")
	flag.PrintDefaults()
	fmt.Fprintln(flag.CommandLine.Output(), "\nEnvironment variables (defaults):")
	fmt.Fprintln(flag.CommandLine.Output(), "  LISTEN_ADDR            Bind address (default :8080)")
	fmt.Fprintln(flag.CommandLine.Output(), "  BLOCKSCOUT_MAINNET_URL Explorer base URL for mainnet")
	fmt.Fprintln(flag.CommandLine.Output(), "  BLOCKSCOUT_SEPOLIA_URL Explorer base URL for sepolia")
	fmt.Fprintln(flag.CommandLine.Output(), "  TX_LIMIT               Transactions scored per wallet (default 3)")
	fmt.Fprintln(flag.CommandLine.Output(), "  COHORT_BLOCKS          Recent blocks sampled for the cohort (default 12)")
	fmt.Fprintln(flag.CommandLine.Output(), "  COHORT_TX_CAP          Cohort sample cap across blocks (default 600)")
	fmt.Fprintln(flag.CommandLine.Output(), "  COHORT_TTL             Shared cohort cache TTL (default 1m)")
	fmt.Fprintln(flag.CommandLine.Output(), "  REDIS_URL              Redis URL for the cohort cache (optional)")
	fmt.Fprintln(flag.CommandLine.Output(), "  RATE_LIMIT             Explorer rate limit (req/s, default 0 = unlimited)")
	fmt.Fprintln(flag.CommandLine.Output(), "  HTTP_RETRIES           HTTP retries on 5xx/429/network (default 2)")
	fmt.Fprintln(flag.CommandLine.Output(), "  HTTP_BACKOFF_BASE      Backoff base for retries (default 100ms)")
	fmt.Fprintln(flag.CommandLine.Output(), "  HTTP_TIMEOUT           Request timeout (default 30s)")
	fmt.Fprintln(flag.CommandLine.Output(), "  AI_BASE_URL            Chat-completions API base URL")
	fmt.Fprintln(flag.CommandLine.Output(), "  AI_API_KEY             API key for explanations (empty disables /explain)")
	fmt.Fprintln(flag.CommandLine.Output(), "  AI_MODEL               Model identifier (default asi1-mini)")
	fmt.Fprintln(flag.CommandLine.Output(), "  LOG_LEVEL              debug | info | warn | error (default info)")
}

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.Load()

	var (
		listenAddr  string
		showVersion bool
	)
	flag.Usage = printUsage
	flag.StringVar(&listenAddr, "listen", cfg.ListenAddr, "Bind address (LISTEN_ADDR)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := logging.With("server")

	sources := make(map[string]explorer.DataSource, 2)
	for _, network := range []string{"mainnet", "sepolia"} {
		base := cfg.ExplorerURL(network)
		if base == "" {
			continue
		}
		ds, err := explorer.NewDataSource(base, cfg.RateLimit, cfg.HTTPRetries, cfg.HTTPBackoffBase, cfg.HTTPTimeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "explorer %s: %v\n", network, err)
			exit(1)
		}
		sources[network] = ds
	}

	var cache *cohortcache.Cache
	if cfg.RedisURL != "" {
		c, err := cohortcache.New(cfg.RedisURL, cfg.CohortTTL)
		if err != nil {
			logger.Warn("cohort_cache_disabled", "error", err.Error(), "url", cfgpkg.Redact(cfg.RedisURL))
		} else {
			cache = c
			defer func() { _ = cache.Close() }()
		}
	}

	var explainer *explain.Client
	if cfg.AIAPIKey != "" {
		c, err := explain.New(explain.Config{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.AIAPIKey,
			Model:   cfg.AIModel,
			Timeout: cfg.HTTPTimeout,
		}, nil)
		if err != nil {
			logger.Warn("explain_disabled", "error", err.Error())
		} else {
			explainer = c
		}
	}

	router := server.New(cfg, sources, cache, explainer).Router()
	logger.Info("listening", "addr", listenAddr, "version", version,
		"networks", len(sources), "cache", cache != nil, "explain", explainer != nil)
	if err := serve(listenAddr, router); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		exit(1)
	}
}
