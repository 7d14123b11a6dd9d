package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/law-makers/harvest/internal/proxy"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func testSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	opts.Retry = retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1,
		RetryableStatusCodes: retry.DefaultConfig().RetryableStatusCodes}
	s, err := NewSession(opts)
	require.NoError(t, err)
	return s
}

func TestFetchSendsHeadersAndKeepsCookies(t *testing.T) {
	var sawCookie bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "harvest-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://board.example/", r.Header.Get("Referer"))
		if _, err := r.Cookie("JSESSIONID"); err == nil {
			sawCookie = true
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc", Path: "/"})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<p>공지</p>")
	}))
	defer srv.Close()

	s := testSession(t, Options{UserAgent: "harvest-test", Referer: "https://board.example/"})
	ctx := context.Background()

	page, err := s.Fetch(ctx, models.Get(srv.URL+"/list"))
	require.NoError(t, err)
	assert.Equal(t, "<p>공지</p>", page.Body)

	_, err = s.Fetch(ctx, models.Get(srv.URL+"/list?page=2"))
	require.NoError(t, err)
	assert.True(t, sawCookie, "session cookie should be replayed")
}

func TestFetchPostsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		io.WriteString(w, "page="+r.PostForm.Get("pageIndex"))
	}))
	defer srv.Close()

	s := testSession(t, Options{})
	page, err := s.Fetch(context.Background(), models.Post(srv.URL, map[string]string{"pageIndex": "3"}))
	require.NoError(t, err)
	assert.Equal(t, "page=3", page.Body)
}

func TestFetchDecodesEUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String("<html><body>사업 공고</body></html>")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/declared" {
			w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		} else {
			w.Header().Set("Content-Type", "text/html")
		}
		io.WriteString(w, encoded)
	}))
	defer srv.Close()

	declared := testSession(t, Options{})
	page, err := declared.Fetch(context.Background(), models.Get(srv.URL+"/declared"))
	require.NoError(t, err)
	assert.Contains(t, page.Body, "사업 공고")

	forced := testSession(t, Options{Encoding: "euc-kr"})
	page, err = forced.Fetch(context.Background(), models.Get(srv.URL+"/bare"))
	require.NoError(t, err)
	assert.Contains(t, page.Body, "사업 공고")
}

func TestFetchNon2xxIsTransportError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := testSession(t, Options{})
	_, err := s.Fetch(context.Background(), models.Get(srv.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTransport)
	assert.Equal(t, models.KindTransport, models.KindOf(err))
	assert.Equal(t, 1, calls, "404 is not retried")
}

func TestOpenRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	s := testSession(t, Options{})
	st, err := s.Open(context.Background(), models.Get(srv.URL+"/file"))
	require.NoError(t, err)
	defer st.Close()

	body, err := io.ReadAll(st.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 3, calls)
	assert.Equal(t, srv.URL+"/file", st.URL)
}

func TestUnknownEncodingIsEncodingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "x")
	}))
	defer srv.Close()

	s := testSession(t, Options{Encoding: "klingon-8"})
	_, err := s.Fetch(context.Background(), models.Get(srv.URL))
	assert.ErrorIs(t, err, models.ErrEncoding)
}

func TestFetchThroughProxyPool(t *testing.T) {
	var target string
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target = r.URL.String()
		io.WriteString(w, "via-proxy")
	}))
	defer proxySrv.Close()

	pool, err := proxy.Parse(proxySrv.URL)
	require.NoError(t, err)

	s := testSession(t, Options{Proxies: pool})
	page, err := s.Fetch(context.Background(), models.Get("http://board.invalid/list.do"))
	require.NoError(t, err)
	assert.Equal(t, "via-proxy", page.Body)
	assert.Equal(t, "http://board.invalid/list.do", target)
}

func TestOpenStalledBodyTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "partial")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	s := testSession(t, Options{Timeout: 200 * time.Millisecond})
	st, err := s.Open(context.Background(), models.Get(srv.URL+"/file"))
	require.NoError(t, err)
	defer st.Close()

	start := time.Now()
	data, err := io.ReadAll(st.Body)
	assert.True(t, errors.Is(err, ErrIdleTimeout), "got %v", err)
	assert.Equal(t, "partial", string(data))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestOpenSlowBodyWithinTimeoutCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 4; i++ {
			io.WriteString(w, "chunk")
			w.(http.Flusher).Flush()
			time.Sleep(100 * time.Millisecond)
		}
	}))
	defer srv.Close()

	s := testSession(t, Options{Timeout: 300 * time.Millisecond})
	st, err := s.Open(context.Background(), models.Get(srv.URL+"/file"))
	require.NoError(t, err)
	defer st.Close()

	data, err := io.ReadAll(st.Body)
	require.NoError(t, err)
	assert.Equal(t, "chunkchunkchunkchunk", string(data))
}
