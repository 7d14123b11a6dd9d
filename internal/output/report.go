package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RunReport is the per-run manifest written as run_<timestamp>_<id>.json
type RunReport struct {
	RunID         string      `json:"run_id"`
	Site          string      `json:"site"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at"`
	PagesVisited  int         `json:"pages_visited"`
	StopReason    string      `json:"stop_reason"`
	Skipped       int         `json:"skipped"`
	PageErrors    []PageError `json:"page_errors,omitempty"`
	Announcements []*Manifest `json:"announcements"`
}

// PageError records a list page that could not be fetched or parsed
type PageError struct {
	Page  int    `json:"page"`
	URL   string `json:"url"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// Counts tallies announcements by status
func (r *RunReport) Counts() map[Status]int {
	c := map[Status]int{StatusComplete: 0, StatusPartial: 0, StatusFailed: 0}
	for _, m := range r.Announcements {
		c[m.Status]++
	}
	return c
}

// Write stores the report in siteDir and returns its path. The name carries
// the start time and the first block of the run ID; an existing file with the
// same name is never overwritten.
func (r *RunReport) Write(siteDir string) (string, error) {
	stem := "run_" + r.StartedAt.UTC().Format("20060102T150405Z")
	if id, err := uuid.Parse(r.RunID); err == nil {
		stem += "_" + id.String()[:8]
	}
	path := filepath.Join(siteDir, stem+".json")
	for n := 2; exists(path); n++ {
		path = filepath.Join(siteDir, fmt.Sprintf("%s_%d.json", stem, n))
	}
	if err := writeJSON(path, r); err != nil {
		return "", err
	}
	return path, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
