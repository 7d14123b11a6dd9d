// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces outbound requests. Every request the harvester issues,
// list pages and attachment downloads alike, passes through Wait first.
type Limiter interface {
	// Wait blocks until a request for the given URL may proceed or ctx is done.
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a request could proceed right now, consuming a token if so.
	Allow(urlStr string) bool
}

// HostLimiter keeps one token bucket per host. With a burst of one the
// bucket degenerates into a fixed minimum gap between requests to that host.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	every    rate.Limit
	burst    int
}

// NewDelayLimiter returns a limiter enforcing at least delay between two
// requests to the same host. A zero delay disables limiting.
func NewDelayLimiter(delay time.Duration) *HostLimiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    limit,
		burst:    1,
	}
}

// Wait blocks until the request for the given URL can proceed
func (hl *HostLimiter) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return hl.get(hostOf(urlStr)).Wait(ctx)
}

// Allow checks if a request can proceed immediately without blocking
func (hl *HostLimiter) Allow(urlStr string) bool {
	return hl.get(hostOf(urlStr)).Allow()
}

// SetDelay changes the gap for one host, e.g. from a per-site override
func (hl *HostLimiter) SetDelay(host string, delay time.Duration) {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	hl.get(host).SetLimit(limit)
}

func (hl *HostLimiter) get(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	l, ok := hl.limiters[host]
	if !ok {
		l = rate.NewLimiter(hl.every, hl.burst)
		hl.limiters[host] = l
	}
	return l
}

// hostOf returns the host of urlStr; unparseable URLs share the "" bucket.
func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}
