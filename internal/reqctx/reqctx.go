package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type key int

const runKey key = 0

// RunContext identifies one harvest of one site
type RunContext struct {
	RunID     string
	Site      string
	StartTime time.Time
}

// WithRun attaches a fresh RunContext for site to ctx
func WithRun(ctx context.Context, site string) context.Context {
	return context.WithValue(ctx, runKey, &RunContext{
		RunID:     uuid.NewString(),
		Site:      site,
		StartTime: time.Now(),
	})
}

// FromContext returns the RunContext stored in ctx, or a placeholder
func FromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runKey).(*RunContext); ok {
		return rc
	}
	return &RunContext{
		RunID:     "unknown",
		StartTime: time.Now(),
	}
}

// RunError wraps an error with the run it happened in
type RunError struct {
	RunID string
	Site  string
	Err   error
}

// Error implements the error interface
func (e *RunError) Error() string {
	return fmt.Sprintf("[%s %s] %v", e.Site, e.RunID, e.Err)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a RunError from ctx
func NewRunError(ctx context.Context, err error) error {
	rc := FromContext(ctx)
	return &RunError{
		RunID: rc.RunID,
		Site:  rc.Site,
		Err:   err,
	}
}
