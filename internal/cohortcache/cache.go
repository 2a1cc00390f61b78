// Package cohortcache shares one built cohort baseline across bursts of
// scoring requests via Redis. It is an ephemeral TTL cache of a derived
// sample, not historical state: every entry expires and any Redis failure
// degrades to a fresh cohort build.
package cohortcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/walletscope/txscore/internal/logging"
	"github.com/walletscope/txscore/internal/score"
)

const keyPrefix = "cohort:"

// Cache stores cohort stats per network with a TTL.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to the Redis URL (redis://...). The TTL bounds how stale a
// shared cohort may get before a request rebuilds it.
func New(url string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{rdb: redis.NewClient(opts), ttl: ttl}, nil
}

// Get returns the cached cohort for a network. Any miss, decode failure or
// Redis error reports a plain miss.
func (c *Cache) Get(ctx context.Context, network string) (score.CohortStats, bool) {
	if c == nil || c.rdb == nil {
		return score.CohortStats{}, false
	}
	payload, err := c.rdb.Get(ctx, keyPrefix+network).Result()
	if err == redis.Nil {
		return score.CohortStats{}, false
	}
	if err != nil {
		logging.With("cohortcache").Warn("get_failed", "network", network, "error", err.Error())
		return score.CohortStats{}, false
	}
	var stats score.CohortStats
	if err := json.Unmarshal([]byte(payload), &stats); err != nil {
		return score.CohortStats{}, false
	}
	return stats, true
}

// Put stores the cohort for a network. Failures are logged and dropped; the
// caller already holds the stats it needs.
func (c *Cache) Put(ctx context.Context, network string, stats score.CohortStats) {
	if c == nil || c.rdb == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+network, payload, c.ttl).Err(); err != nil {
		logging.With("cohortcache").Warn("put_failed", "network", network, "error", err.Error())
	}
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
