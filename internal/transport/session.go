// internal/transport/session.go
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/law-makers/harvest/internal/proxy"
	"github.com/law-makers/harvest/internal/ratelimit"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/internal/utils/headers"
	"github.com/law-makers/harvest/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

// Options configure a Session
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Proxies rotates outbound requests; nil connects directly.
	Proxies *proxy.Pool
	// InsecureSkipVerify disables certificate checks for boards with broken chains.
	InsecureSkipVerify bool
	Headers            map[string]string
	// Referer is sent on every request that does not set its own.
	Referer string
	// Encoding forces a page charset ("euc-kr"); empty or "auto" sniffs it.
	Encoding string
	Limiter  ratelimit.Limiter
	Retry    retry.Config
}

// Session is the single anonymous cookie-bearing HTTP session of one site harvest
type Session struct {
	client  *http.Client
	opts    Options
	headers map[string]string
}

// Stream is an open response body. Callers must Close it.
type Stream struct {
	Body       io.ReadCloser
	URL        string
	Header     http.Header
	StatusCode int
}

// Close releases the response body
func (s *Stream) Close() error {
	return s.Body.Close()
}

// NewSession builds the HTTP client for one site
func NewSession(opts Options) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	// The timeout bounds time to first byte and each stall while reading the
	// body; a download that keeps streaming may run for longer.
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = opts.Timeout
	if opts.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	if opts.Proxies.Len() > 0 {
		tr.Proxy = proxy.FromRequest
	}

	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewDelayLimiter(0)
	}

	base := headers.BrowserDefaults()
	if opts.UserAgent != "" {
		base["User-Agent"] = opts.UserAgent
	}
	if opts.Referer != "" {
		base["Referer"] = opts.Referer
	}

	return &Session{
		client: &http.Client{
			Jar:       jar,
			Transport: tr,
		},
		opts:    opts,
		headers: headers.Merge(base, opts.Headers),
	}, nil
}

// Open issues desc and returns the response body as a stream. Non-2xx
// responses are reported as transport errors after retries are spent.
func (s *Session) Open(ctx context.Context, desc models.RequestDescriptor) (*Stream, error) {
	var stream *Stream
	err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
		if err := s.opts.Limiter.Wait(ctx, desc.URL); err != nil {
			return &retry.Permanent{Err: err}
		}
		st, err := s.do(ctx, desc)
		if err != nil {
			return err
		}
		stream = st
		return nil
	})
	if err != nil {
		var merr *models.Error
		if errors.As(err, &merr) {
			return nil, err
		}
		return nil, &models.Error{Kind: models.KindTransport, Op: "open", URL: desc.URL, Err: err}
	}
	return stream, nil
}

func (s *Session) do(ctx context.Context, desc models.RequestDescriptor) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := newRequest(ctx, desc)
	if err != nil {
		cancel()
		return nil, &retry.Permanent{Err: err}
	}
	headers.Apply(req.Header, s.headers)
	headers.Apply(req.Header, desc.Headers)

	via := s.opts.Proxies.Next()
	if via != nil {
		req = req.WithContext(proxy.WithProxy(ctx, via))
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		s.opts.Proxies.MarkFailed(via)
		return nil, &models.Error{Kind: models.KindTransport, Op: string(desc.Method), URL: desc.URL, Err: err}
	}
	s.opts.Proxies.MarkHealthy(via)

	log.Debug().
		Str("method", req.Method).
		Str("url", desc.URL).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		cancel()
		return nil, &models.Error{
			Kind:       models.KindTransport,
			Op:         string(desc.Method),
			URL:        desc.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	return &Stream{
		Body:       newIdleReader(resp.Body, cancel, s.opts.Timeout),
		URL:        resp.Request.URL.String(),
		Header:     resp.Header,
		StatusCode: resp.StatusCode,
	}, nil
}

func newRequest(ctx context.Context, desc models.RequestDescriptor) (*http.Request, error) {
	switch desc.Method {
	case models.MethodPost:
		form := url.Values{}
		for k, v := range desc.Form {
			form.Set(k, v)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.URL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	case models.MethodGet, "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		return req, nil
	default:
		return nil, fmt.Errorf("unsupported method %q", desc.Method)
	}
}

// Close drops idle keep-alive connections
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}
