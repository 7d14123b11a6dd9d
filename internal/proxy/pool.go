package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Cooldown is how long a failed proxy is skipped
const Cooldown = 5 * time.Minute

// Pool rotates requests across proxies, skipping ones that recently failed
type Pool struct {
	proxies []*url.URL
	index   int
	mu      sync.Mutex
	failed  map[string]time.Time
}

// Parse builds a Pool from a comma-separated proxy list. An empty list yields a nil pool.
func Parse(list string) (*Pool, error) {
	var proxies []*url.URL
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q", raw)
		}
		proxies = append(proxies, u)
	}
	if len(proxies) == 0 {
		return nil, nil
	}
	return NewPool(proxies), nil
}

// NewPool creates a Pool over proxies
func NewPool(proxies []*url.URL) *Pool {
	return &Pool{
		proxies: proxies,
		failed:  make(map[string]time.Time),
	}
}

// Len returns the number of configured proxies
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}

// Next returns the next healthy proxy. When every proxy is cooling down it
// returns the next one in turn anyway.
func (p *Pool) Next() *url.URL {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return nil
	}

	start := p.index
	for {
		u := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		if failTime, ok := p.failed[u.String()]; ok {
			if time.Since(failTime) < Cooldown {
				if p.index == start {
					return u
				}
				continue
			}
			delete(p.failed, u.String())
		}
		return u
	}
}

// MarkFailed marks a proxy as failed so it will be skipped for a while
func (p *Pool) MarkFailed(u *url.URL) {
	if p == nil || u == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[u.String()] = time.Now()
}

// MarkHealthy clears the failure status of a proxy
func (p *Pool) MarkHealthy(u *url.URL) {
	if p == nil || u == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, u.String())
}

type ctxKey struct{}

// WithProxy pins the proxy a request should use
func WithProxy(ctx context.Context, u *url.URL) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromRequest is an http.Transport Proxy func reading the proxy pinned by WithProxy
func FromRequest(r *http.Request) (*url.URL, error) {
	u, _ := r.Context().Value(ctxKey{}).(*url.URL)
	return u, nil
}
