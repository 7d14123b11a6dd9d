package engine

import (
	"errors"
	"fmt"
)

// ErrCancelled marks a run stopped by its context
var ErrCancelled = errors.New("run cancelled")

// StepError reports which phase of an announcement failed
type StepError struct {
	State State
	Title string
	Err   error
}

// Error implements the error interface
func (e *StepError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.State, e.Title, e.Err)
}

// Unwrap returns the underlying error
func (e *StepError) Unwrap() error {
	return e.Err
}
