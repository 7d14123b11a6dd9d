package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// ErrIdleTimeout is returned by a Stream whose server stopped sending data
var ErrIdleTimeout = errors.New("read idle timeout")

// idleReader cancels its request when no bytes arrive for timeout. Every
// successful read pushes the deadline back.
type idleReader struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	timeout time.Duration
	timer   *time.Timer
	expired atomic.Bool
}

func newIdleReader(body io.ReadCloser, cancel context.CancelFunc, timeout time.Duration) *idleReader {
	r := &idleReader{body: body, cancel: cancel, timeout: timeout}
	if timeout > 0 {
		r.timer = time.AfterFunc(timeout, func() {
			r.expired.Store(true)
			cancel()
		})
	}
	return r
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err != nil && r.expired.Load() {
		return n, fmt.Errorf("no data for %s: %w", r.timeout, ErrIdleTimeout)
	}
	if n > 0 && r.timer != nil {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func (r *idleReader) Close() error {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.cancel()
	return r.body.Close()
}
