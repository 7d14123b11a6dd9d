// Package pagination decides which list page to fetch next and when to stop.
package pagination

import "github.com/law-makers/harvest/pkg/models"

// PageBuilder builds the request for a list page; adapters implement it
type PageBuilder interface {
	BuildPageDescriptor(page int) models.RequestDescriptor
}

// Seen reports whether an identity was already processed
type Seen interface {
	Contains(identity string) bool
}

// Reason says why enumeration ended
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonMaxPages  Reason = "max_pages"
	ReasonEmptyPage Reason = "empty_page"
	ReasonAllSeen   Reason = "all_seen"
	ReasonCancelled Reason = "cancelled"
)

// Policy holds the exhaustion rules for one run
type Policy struct {
	MaxPages  int
	StopEarly bool
	// DuplicateThreshold, when positive, ends the run once a page has this many
	// already-seen announcements even if some are new.
	DuplicateThreshold int
}

// NextPage returns the adapter's descriptor for page, unchanged
func NextPage(b PageBuilder, page int) models.RequestDescriptor {
	return b.BuildPageDescriptor(page)
}

// BeyondCeiling reports whether page exceeds the hard page limit
func (p Policy) BeyondCeiling(page int) bool {
	return p.MaxPages > 0 && page > p.MaxPages
}

// Exhausted evaluates the stop rules for a parsed page in priority order:
// page ceiling, empty page, then (with StopEarly) an all-seen page.
func (p Policy) Exhausted(page int, parsed []models.Announcement, seen Seen) (bool, Reason) {
	if p.BeyondCeiling(page) {
		return true, ReasonMaxPages
	}
	if len(parsed) == 0 {
		return true, ReasonEmptyPage
	}
	if !p.StopEarly || seen == nil {
		return false, ReasonNone
	}

	dup := 0
	for _, a := range parsed {
		if seen.Contains(a.Identity()) {
			dup++
		}
	}
	if dup == len(parsed) {
		return true, ReasonAllSeen
	}
	if p.DuplicateThreshold > 0 && dup >= p.DuplicateThreshold {
		return true, ReasonAllSeen
	}
	return false, ReasonNone
}

// Fresh returns the announcements not yet seen, in list order. An identity
// repeated within the page is kept once.
func Fresh(parsed []models.Announcement, seen Seen) []models.Announcement {
	out := make([]models.Announcement, 0, len(parsed))
	onPage := make(map[string]bool, len(parsed))
	for _, a := range parsed {
		id := a.Identity()
		if id == "" || onPage[id] || (seen != nil && seen.Contains(id)) {
			continue
		}
		onPage[id] = true
		out = append(out, a)
	}
	return out
}
