package models

import (
	"strings"
	"time"
)

// Method is the HTTP verb of a RequestDescriptor
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// RequestDescriptor describes how to fetch a resource without issuing the call.
// Adapters and the pagination driver only ever build these; the transport runs them.
type RequestDescriptor struct {
	Method  Method            `json:"method"`
	URL     string            `json:"url"`
	Form    map[string]string `json:"form,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Get is shorthand for a GET descriptor
func Get(url string) RequestDescriptor {
	return RequestDescriptor{Method: MethodGet, URL: url}
}

// Post is shorthand for a POST descriptor with a form body
func Post(url string, form map[string]string) RequestDescriptor {
	return RequestDescriptor{Method: MethodPost, URL: url, Form: form}
}

// Announcement is one row of a board's list view
type Announcement struct {
	Title         string            `json:"title"`
	Detail        RequestDescriptor `json:"detail"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	HasAttachment bool              `json:"has_attachment"`
	// Key overrides Title as identity when the adapter has a stable id.
	Key string `json:"key,omitempty"`
}

// Identity returns the ledger key for the announcement
func (a Announcement) Identity() string {
	if k := NormalizeIdentity(a.Key); k != "" {
		return k
	}
	return NormalizeIdentity(a.Title)
}

// NormalizeIdentity trims surrounding whitespace from an identity string
func NormalizeIdentity(s string) string {
	return strings.TrimSpace(s)
}

// Attachment is a downloadable file referenced from a detail page
type Attachment struct {
	DisplayName string            `json:"display_name"`
	Source      RequestDescriptor `json:"source"`
	SizeHint    *int64            `json:"size_hint,omitempty"`
	// Tokens carries site-specific ids (file group, sequence) some sites post instead of a URL.
	Tokens map[string]string `json:"tokens,omitempty"`
}

// DownloadOutcome is the result of resolving one attachment
type DownloadOutcome struct {
	DisplayName   string     `json:"display_name"`
	FinalName     string     `json:"final_name,omitempty"`
	Path          string     `json:"path,omitempty"`
	ByteLength    int64      `json:"byte_length"`
	Success       bool       `json:"success"`
	FailureReason *ErrorKind `json:"failure_reason,omitempty"`
	Error         string     `json:"error,omitempty"`
	NameSource    string     `json:"name_source,omitempty"`
}

// LedgerEntry records when an identity was processed
type LedgerEntry struct {
	Identity    string    `json:"identity"`
	ProcessedAt time.Time `json:"processed_at"`
}
