package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures the harvester absorbs at different levels
type ErrorKind string

const (
	KindTransport     ErrorKind = "transport"
	KindParse         ErrorKind = "parse"
	KindEncoding      ErrorKind = "encoding"
	KindEmptyDownload ErrorKind = "empty_download"
	KindIO            ErrorKind = "io"
)

// Error wraps a failure with its kind and the request it belongs to
type Error struct {
	Kind       ErrorKind
	Op         string
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// GetStatusCode exposes the HTTP status for retry classification
func (e *Error) GetStatusCode() int {
	return e.StatusCode
}

// Sentinels for errors.Is checks
var (
	ErrTransport     = &Error{Kind: KindTransport}
	ErrParse         = &Error{Kind: KindParse}
	ErrEncoding      = &Error{Kind: KindEncoding}
	ErrEmptyDownload = &Error{Kind: KindEmptyDownload}
)

// NewError builds an *Error
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// ParseError reports that an adapter could not find an expected structure
func ParseError(op string, format string, args ...any) *Error {
	return &Error{Kind: KindParse, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// KindPtr returns a pointer to k, for optional outcome fields
func KindPtr(k ErrorKind) *ErrorKind {
	return &k
}
