package explorer

import (
	"net/http"
	"time"
)

// NewDataSource constructs a concrete DataSource for the given base URL and
// wraps it with a rate limiter. Validation is centralized in NewHTTPClient.
func NewDataSource(base string, rateLimit, retries int, backoff, timeout time.Duration) (DataSource, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ds, err := NewHTTPClient(base, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	if hc, ok := ds.(*httpClient); ok {
		if retries > 0 {
			hc.maxRetries = retries
		}
		if backoff > 0 {
			hc.backoffBase = backoff
		}
	}
	return WrapWithLimiter(ds, NewLimiter(rateLimit)), nil
}
