// Package output lays announcements out on disk and writes run manifests.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/law-makers/harvest/internal/downloader"
	"github.com/law-makers/harvest/pkg/models"
)

// MaxTitleRunes bounds the title part of an announcement directory name
const MaxTitleRunes = 150

var ordinalPrefix = regexp.MustCompile(`^(\d+)_`)

// Layout allocates announcement directories under <output>/<site>
type Layout struct {
	siteDir string
	next    int
}

// NewLayout creates the site directory and finds the next free ordinal
func NewLayout(outputDir, site string) (*Layout, error) {
	siteDir := filepath.Join(outputDir, site)
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	entries, err := os.ReadDir(siteDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}
	highest := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := ordinalPrefix.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return &Layout{siteDir: siteDir, next: highest + 1}, nil
}

// SiteDir returns <output>/<site>
func (l *Layout) SiteDir() string { return l.siteDir }

// Allocate creates a fresh NNN_<title> directory and returns its path
func (l *Layout) Allocate(title string) (string, error) {
	name := DirName(l.next, title)
	for {
		dir := filepath.Join(l.siteDir, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			l.next++
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create announcement directory: %w", err)
		}
		l.next++
		name = DirName(l.next, title)
	}
}

// DirName builds the directory name for an announcement
func DirName(ordinal int, title string) string {
	t := downloader.SanitizeFilename(title)
	if r := []rune(t); len(r) > MaxTitleRunes {
		t = strings.TrimRight(string(r[:MaxTitleRunes]), " .")
	}
	return fmt.Sprintf("%03d_%s", ordinal, t)
}

// AttachmentsDir is where an announcement's files go
func AttachmentsDir(dir string) string {
	return filepath.Join(dir, "attachments")
}

var metaLabels = []struct{ key, label string }{
	{"writer", "작성자"},
	{"date", "작성일"},
	{"period", "접수기간"},
	{"status", "상태"},
	{"organization", "기관"},
	{"views", "조회수"},
}

// RenderContent builds content.md: a metadata header followed by the body
func RenderContent(a models.Announcement, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.TrimSpace(a.Title))

	known := make(map[string]bool, len(metaLabels))
	for _, m := range metaLabels {
		known[m.key] = true
		if v := strings.TrimSpace(a.Metadata[m.key]); v != "" {
			fmt.Fprintf(&b, "**%s**: %s\n", m.label, v)
		}
	}
	var extra []string
	for k := range a.Metadata {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		if v := strings.TrimSpace(a.Metadata[k]); v != "" {
			fmt.Fprintf(&b, "**%s**: %s\n", k, v)
		}
	}

	fmt.Fprintf(&b, "**원본 URL**: %s\n\n---\n\n", a.Detail.URL)
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")
	return b.String()
}

// WriteContent writes content.md into dir
func WriteContent(dir string, a models.Announcement, body string) error {
	path := filepath.Join(dir, "content.md")
	if err := os.WriteFile(path, []byte(RenderContent(a, body)), 0o644); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// Status summarises how an announcement fared
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
)

// Manifest is written next to content.md and repeated in the run report
type Manifest struct {
	Title       string                   `json:"title"`
	Identity    string                   `json:"identity"`
	Source      string                   `json:"source"`
	Directory   string                   `json:"directory,omitempty"`
	Metadata    map[string]string        `json:"metadata,omitempty"`
	Status      Status                   `json:"status"`
	Content     bool                     `json:"content_available"`
	Error       string                   `json:"error,omitempty"`
	Attachments []models.DownloadOutcome `json:"attachments"`
	ProcessedAt time.Time                `json:"processed_at"`
}

// Evaluate sets Status from the content flag and attachment outcomes
func (m *Manifest) Evaluate() {
	failed := 0
	for _, o := range m.Attachments {
		if !o.Success {
			failed++
		}
	}
	switch {
	case !m.Content && (len(m.Attachments) == 0 || failed == len(m.Attachments)):
		m.Status = StatusFailed
	case !m.Content || failed > 0:
		m.Status = StatusPartial
	default:
		m.Status = StatusComplete
	}
}

// WriteManifest writes manifest.json into dir
func WriteManifest(dir string, m *Manifest) error {
	return writeJSON(filepath.Join(dir, "manifest.json"), m)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
