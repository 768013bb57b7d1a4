package gateway

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateEntry struct {
	operation string
	timestamp time.Time
}

// rateWindow is a rolling window of recorded operations. Entries are kept
// in arrival order so pruning only ever trims the front.
type rateWindow struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries []rateEntry

	// burst enforces the per-second ceiling across all operations; nil when
	// disabled.
	burst *rate.Limiter
}

func newRateWindow(window time.Duration, max, perSecond int) *rateWindow {
	rw := &rateWindow{
		window: window,
		max:    max,
	}
	if perSecond > 0 {
		rw.burst = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
	return rw
}

// allow prunes expired entries, counts the ones recorded for operation and
// records a new one if the ceiling has not been reached.
func (rw *rateWindow) allow(operation string, now time.Time) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	cut := 0
	for cut < len(rw.entries) && now.Sub(rw.entries[cut].timestamp) >= rw.window {
		cut++
	}
	if cut > 0 {
		rw.entries = append(rw.entries[:0], rw.entries[cut:]...)
	}

	count := 0
	for _, e := range rw.entries {
		if e.operation == operation {
			count++
		}
	}
	if count >= rw.max {
		return newRateLimitError(now, fmt.Sprintf("Rate limit exceeded for operation: %s", operation), operation)
	}

	if rw.burst != nil && !rw.burst.AllowN(now, 1) {
		return newRateLimitError(now, fmt.Sprintf("Burst limit exceeded for operation: %s", operation), operation)
	}

	rw.entries = append(rw.entries, rateEntry{operation: operation, timestamp: now})
	return nil
}

func (rw *rateWindow) size() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return len(rw.entries)
}

// CheckRateLimit records one occurrence of operation, or rejects it when the
// rolling window already holds the configured number of occurrences.
func (g *Gateway) CheckRateLimit(operation string) error {
	return g.limiter.allow(operation, g.now())
}

// rateLimitKey is the operation key used by ValidateFile.
func (g *Gateway) rateLimitKey(absPath string) string {
	if g.cfg.RateLimitScope == ScopePath {
		return "file_access_" + absPath
	}
	return "file_access"
}
