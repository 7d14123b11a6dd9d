// Package sites turns a board's markup into announcements, detail content and
// attachment requests. Adapters never perform I/O; they only build
// RequestDescriptors for the transport to execute.
package sites

import (
	"fmt"
	"sort"

	"github.com/law-makers/harvest/internal/config"
	"github.com/law-makers/harvest/pkg/models"
)

// Detail is what an adapter extracts from a detail page
type Detail struct {
	// Content is markdown, or "" when no body could be located.
	Content     string
	Attachments []models.Attachment
}

// SiteAdapter is the per-site contract used by the orchestrator
type SiteAdapter interface {
	// BuildPageDescriptor returns the request for list page n (1-based).
	BuildPageDescriptor(page int) models.RequestDescriptor
	// ParseList returns the page's announcements in display order. An empty
	// slice with a nil error means the board has no more rows.
	ParseList(body string) ([]models.Announcement, error)
	// ParseDetail parses the detail page fetched from pageURL; relative links
	// resolve against it. It may return a partial Detail together with a
	// parse error.
	ParseDetail(pageURL, body string) (Detail, error)
}

// Factory builds an adapter for a site definition
type Factory func(site *config.Site) (SiteAdapter, error)

var factories = map[string]Factory{
	"table": func(s *config.Site) (SiteAdapter, error) { return NewTable(s), nil },
	"kidp":  func(s *config.Site) (SiteAdapter, error) { return NewKIDP(s), nil },
	"djbea": func(s *config.Site) (SiteAdapter, error) { return NewDJBEA(s), nil },
}

// New returns the adapter registered for site.Type
func New(site *config.Site) (SiteAdapter, error) {
	f, ok := factories[site.Type]
	if !ok {
		return nil, fmt.Errorf("site %s: unknown adapter type %q", site.Code, site.Type)
	}
	return f(site)
}

// Types lists the registered adapter types
func Types() []string {
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
