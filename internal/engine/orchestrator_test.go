package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/law-makers/harvest/internal/content"
	"github.com/law-makers/harvest/internal/downloader"
	"github.com/law-makers/harvest/internal/engine/pagination"
	"github.com/law-makers/harvest/internal/ledger"
	"github.com/law-makers/harvest/internal/output"
	"github.com/law-makers/harvest/internal/sites"
	"github.com/law-makers/harvest/internal/transport"
	"github.com/law-makers/harvest/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves list pages and details keyed by URL; the fake fetcher
// echoes the requested URL as the page body.
type fakeSite struct {
	pageURL   func(page int) string
	pages     map[string][]models.Announcement
	details   map[string]sites.Detail
	detailErr map[string]error
}

func (f *fakeSite) BuildPageDescriptor(page int) models.RequestDescriptor {
	return models.Get(f.pageURL(page))
}

func (f *fakeSite) ParseList(body string) ([]models.Announcement, error) {
	return f.pages[body], nil
}

func (f *fakeSite) ParseDetail(_ string, body string) (sites.Detail, error) {
	return f.details[body], f.detailErr[body]
}

type fakeFetcher struct {
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, desc models.RequestDescriptor) (*transport.Page, error) {
	f.calls = append(f.calls, desc.URL)
	if f.fail[desc.URL] {
		return nil, &models.Error{Kind: models.KindTransport, URL: desc.URL, StatusCode: http.StatusInternalServerError}
	}
	return &transport.Page{URL: desc.URL, Body: desc.URL}, nil
}

// fileServer answers every download with the URL as content, except URLs containing "fail"
type fileServer struct{}

func (fileServer) Open(_ context.Context, desc models.RequestDescriptor) (*transport.Stream, error) {
	if strings.Contains(desc.URL, "fail") {
		return nil, &models.Error{Kind: models.KindTransport, URL: desc.URL, StatusCode: http.StatusNotFound}
	}
	return &transport.Stream{
		Body:       io.NopCloser(strings.NewReader(desc.URL)),
		URL:        desc.URL,
		Header:     http.Header{},
		StatusCode: http.StatusOK,
	}, nil
}

func paged(page int) string { return fmt.Sprintf("https://board.example/list?page=%d", page) }

func announcement(n int) models.Announcement {
	return models.Announcement{
		Title:  fmt.Sprintf("공고 %d", n),
		Detail: models.Get(fmt.Sprintf("https://board.example/view?id=%d", n)),
	}
}

func twoPageSite() *fakeSite {
	s := &fakeSite{
		pageURL: paged,
		pages: map[string][]models.Announcement{
			paged(1): {announcement(1), announcement(2)},
			paged(2): {announcement(3), announcement(4)},
		},
		details: map[string]sites.Detail{},
	}
	for i := 1; i <= 4; i++ {
		s.details[announcement(i).Detail.URL] = sites.Detail{Content: fmt.Sprintf("본문 %d", i)}
	}
	return s
}

type harness struct {
	root       string
	fetcher    *fakeFetcher
	downloader Downloader
	ledger     *ledger.FileLedger
}

func newHarness(t *testing.T, root string) *harness {
	t.Helper()
	return &harness{
		root:       root,
		fetcher:    &fakeFetcher{fail: map[string]bool{}},
		downloader: downloader.NewResolver(fileServer{}),
		ledger:     ledger.NewFileLedger(filepath.Join(root, "demo", "processed_demo.json")),
	}
}

func (h *harness) run(t *testing.T, ctx context.Context, site sites.SiteAdapter, policy pagination.Policy) (*output.RunReport, error) {
	t.Helper()
	layout, err := output.NewLayout(h.root, "demo")
	require.NoError(t, err)
	o := New(Config{
		Site:       "demo",
		Adapter:    site,
		Fetcher:    h.fetcher,
		Downloader: h.downloader,
		Ledger:     h.ledger,
		Layout:     layout,
		Policy:     policy,
	})
	report, err := o.Run(ctx)
	assert.Equal(t, StateIdle, o.State())
	return report, err
}

var announcementDir = regexp.MustCompile(`^\d{3}_`)

func announcementDirs(t *testing.T, siteDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(siteDir)
	require.NoError(t, err)
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && announcementDir.MatchString(e.Name()) {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}

func TestRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	site := twoPageSite()
	policy := pagination.Policy{MaxPages: 10}

	report, err := newHarness(t, root).run(t, context.Background(), site, policy)
	require.NoError(t, err)
	assert.Equal(t, string(pagination.ReasonEmptyPage), report.StopReason)
	assert.Len(t, report.Announcements, 4)
	assert.Equal(t, []string{"001_공고 1", "002_공고 2", "003_공고 3", "004_공고 4"}, announcementDirs(t, filepath.Join(root, "demo")))

	data, err := os.ReadFile(filepath.Join(root, "demo", "001_공고 1", "content.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# 공고 1")
	assert.Contains(t, string(data), "본문 1")
	assert.FileExists(t, filepath.Join(root, "demo", "001_공고 1", "manifest.json"))

	second, err := newHarness(t, root).run(t, context.Background(), site, policy)
	require.NoError(t, err)
	assert.Empty(t, second.Announcements)
	assert.Equal(t, 4, second.Skipped)
	assert.Len(t, announcementDirs(t, filepath.Join(root, "demo")), 4)

	reports, err := filepath.Glob(filepath.Join(root, "demo", "run_*.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, reports)
}

func TestAlwaysFirstPageStopsWhenAllSeen(t *testing.T) {
	site := twoPageSite()
	site.pageURL = func(int) string { return paged(1) }

	h := newHarness(t, t.TempDir())
	report, err := h.run(t, context.Background(), site, pagination.Policy{StopEarly: true})
	require.NoError(t, err)
	assert.Equal(t, string(pagination.ReasonAllSeen), report.StopReason)
	assert.Equal(t, 2, report.PagesVisited)
	assert.Len(t, report.Announcements, 2)
}

func TestMaxPagesBoundsRun(t *testing.T) {
	site := twoPageSite()
	site.pageURL = func(int) string { return paged(1) }

	h := newHarness(t, t.TempDir())
	report, err := h.run(t, context.Background(), site, pagination.Policy{MaxPages: 3})
	require.NoError(t, err)
	assert.Equal(t, string(pagination.ReasonMaxPages), report.StopReason)
	assert.Equal(t, 3, report.PagesVisited)
	assert.Len(t, report.Announcements, 2)
}

func TestAttachmentFailureIsIsolated(t *testing.T) {
	site := &fakeSite{
		pageURL: paged,
		pages:   map[string][]models.Announcement{paged(1): {announcement(1)}},
		details: map[string]sites.Detail{
			announcement(1).Detail.URL: {
				Content: "본문",
				Attachments: []models.Attachment{
					{DisplayName: "a", Source: models.Get("https://files.example/a.pdf")},
					{DisplayName: "b", Source: models.Get("https://files.example/fail/b.pdf")},
					{DisplayName: "c", Source: models.Get("https://files.example/c.pdf")},
				},
			},
		},
	}

	root := t.TempDir()
	h := newHarness(t, root)
	report, err := h.run(t, context.Background(), site, pagination.Policy{MaxPages: 5})
	require.NoError(t, err)
	require.Len(t, report.Announcements, 1)

	m := report.Announcements[0]
	assert.Equal(t, output.StatusPartial, m.Status)
	require.Len(t, m.Attachments, 3)
	assert.True(t, m.Attachments[0].Success)
	assert.False(t, m.Attachments[1].Success)
	assert.Equal(t, models.KindTransport, *m.Attachments[1].FailureReason)
	assert.True(t, m.Attachments[2].Success)

	attDir := filepath.Join(root, "demo", "001_공고 1", "attachments")
	assert.FileExists(t, filepath.Join(attDir, "a.pdf"))
	assert.FileExists(t, filepath.Join(attDir, "c.pdf"))
	assert.NoFileExists(t, filepath.Join(attDir, "b.pdf"))
	assert.True(t, h.ledger.Contains("공고 1"))
}

func TestDetailFetchFailureIsNotRecorded(t *testing.T) {
	site := twoPageSite()
	root := t.TempDir()
	h := newHarness(t, root)
	h.fetcher.fail[announcement(2).Detail.URL] = true

	report, err := h.run(t, context.Background(), site, pagination.Policy{MaxPages: 10})
	require.NoError(t, err)
	require.Len(t, report.Announcements, 4)

	failed := report.Announcements[1]
	assert.Equal(t, output.StatusFailed, failed.Status)
	assert.Empty(t, failed.Directory)
	assert.NotEmpty(t, failed.Error)
	assert.False(t, h.ledger.Contains("공고 2"))
	assert.True(t, h.ledger.Contains("공고 3"))
	assert.Len(t, announcementDirs(t, filepath.Join(root, "demo")), 3)
}

func TestParseFailureKeepsAnnouncement(t *testing.T) {
	site := twoPageSite()
	site.detailErr = map[string]error{
		announcement(1).Detail.URL: models.ParseError("detail", "no content container found"),
	}
	site.details[announcement(1).Detail.URL] = sites.Detail{}

	root := t.TempDir()
	h := newHarness(t, root)
	report, err := h.run(t, context.Background(), site, pagination.Policy{MaxPages: 10})
	require.NoError(t, err)

	m := report.Announcements[0]
	assert.False(t, m.Content)
	assert.Equal(t, output.StatusFailed, m.Status)
	data, err := os.ReadFile(filepath.Join(root, "demo", "001_공고 1", "content.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), content.Unavailable)
	assert.True(t, h.ledger.Contains("공고 1"))
}

func TestListFailureEndsRunNormally(t *testing.T) {
	h := newHarness(t, t.TempDir())
	h.fetcher.fail[paged(1)] = true

	report, err := h.run(t, context.Background(), twoPageSite(), pagination.Policy{MaxPages: 10})
	require.NoError(t, err)
	assert.Equal(t, string(pagination.ReasonEmptyPage), report.StopReason)
	require.Len(t, report.PageErrors, 1)
	assert.Equal(t, string(models.KindTransport), report.PageErrors[0].Kind)
}

func TestCancelledRunFlushesLedger(t *testing.T) {
	root := t.TempDir()
	h := newHarness(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.run(t, ctx, twoPageSite(), pagination.Policy{MaxPages: 10})
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, string(pagination.ReasonCancelled), report.StopReason)
	assert.Empty(t, h.fetcher.calls)
	assert.FileExists(t, h.ledger.Path())
}

// cancellingDownloader cancels the run while a download is in flight and
// reports the download as failed, as the resolver does for an aborted stream.
type cancellingDownloader struct {
	cancel context.CancelFunc
}

func (d cancellingDownloader) Resolve(ctx context.Context, att models.Attachment, _ int, _ string) models.DownloadOutcome {
	d.cancel()
	return models.DownloadOutcome{
		DisplayName:   att.DisplayName,
		FailureReason: models.KindPtr(models.KindTransport),
		Error:         ctx.Err().Error(),
	}
}

func TestCancelDuringLastAttachmentLeavesAnnouncementUnrecorded(t *testing.T) {
	site := twoPageSite()
	site.details[announcement(1).Detail.URL] = sites.Detail{
		Content:     "본문 1",
		Attachments: []models.Attachment{{DisplayName: "a", Source: models.Get("https://files.example/a.pdf")}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, t.TempDir())
	h.downloader = cancellingDownloader{cancel: cancel}

	report, err := h.run(t, ctx, site, pagination.Policy{MaxPages: 10})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, string(pagination.ReasonCancelled), report.StopReason)
	require.Len(t, report.Announcements, 1)

	m := report.Announcements[0]
	assert.Equal(t, output.StatusPartial, m.Status)
	assert.Equal(t, ErrCancelled.Error(), m.Error)
	assert.FileExists(t, filepath.Join(m.Directory, "manifest.json"))
	assert.False(t, h.ledger.Contains("공고 1"))

	// The flushed ledger lets the next run pick the announcement up again.
	again := newHarness(t, h.root)
	report, err = again.run(t, context.Background(), site, pagination.Policy{MaxPages: 10})
	require.NoError(t, err)
	require.Len(t, report.Announcements, 4)
	assert.Equal(t, "공고 1", report.Announcements[0].Title)
	assert.Equal(t, output.StatusComplete, report.Announcements[0].Status)
}
