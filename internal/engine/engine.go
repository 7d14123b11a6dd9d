// Package engine drives a site through list pages, detail pages and
// attachments, persisting each new announcement exactly once.
package engine

import (
	"context"

	"github.com/law-makers/harvest/internal/output"
	"github.com/law-makers/harvest/internal/transport"
	"github.com/law-makers/harvest/pkg/models"
)

// Fetcher retrieves decoded pages; *transport.Session implements it
type Fetcher interface {
	Fetch(ctx context.Context, desc models.RequestDescriptor) (*transport.Page, error)
}

// Downloader saves one attachment; *downloader.Resolver implements it
type Downloader interface {
	Resolve(ctx context.Context, att models.Attachment, ordinal int, destDir string) models.DownloadOutcome
}

// State is the orchestrator's current phase
type State string

const (
	StateIdle      State = "idle"
	StateListing   State = "listing"
	StateDetail    State = "detail"
	StateAttaching State = "attaching"
)

// Observer receives progress events. Nil fields are skipped.
type Observer struct {
	PageStart func(page, fresh int)
	Processed func(m *output.Manifest)
	PageDone  func(page int)
}

func (o Observer) pageStart(page, fresh int) {
	if o.PageStart != nil {
		o.PageStart(page, fresh)
	}
}

func (o Observer) processed(m *output.Manifest) {
	if o.Processed != nil {
		o.Processed(m)
	}
}

func (o Observer) pageDone(page int) {
	if o.PageDone != nil {
		o.PageDone(page)
	}
}
