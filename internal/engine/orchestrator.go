package engine

import (
	"context"
	"time"

	"github.com/law-makers/harvest/internal/content"
	"github.com/law-makers/harvest/internal/engine/pagination"
	"github.com/law-makers/harvest/internal/ledger"
	"github.com/law-makers/harvest/internal/output"
	"github.com/law-makers/harvest/internal/reqctx"
	"github.com/law-makers/harvest/internal/sites"
	"github.com/law-makers/harvest/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config wires an Orchestrator's collaborators
type Config struct {
	Site       string
	Adapter    sites.SiteAdapter
	Fetcher    Fetcher
	Downloader Downloader
	Ledger     ledger.Ledger
	Layout     *output.Layout
	Policy     pagination.Policy
	Observer   Observer
}

// Orchestrator runs one site sequentially: pages in ascending order,
// announcements in list order, attachments in detail order.
type Orchestrator struct {
	cfg   Config
	state State
}

// New creates an Orchestrator
func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, state: StateIdle}
}

// State returns the current phase
func (o *Orchestrator) State() State {
	return o.state
}

// Run enumerates the site until a stop rule fires or ctx is cancelled. The
// ledger is flushed and the run report written in every case. A cancelled run
// returns its partial report together with ErrCancelled.
func (o *Orchestrator) Run(ctx context.Context) (*output.RunReport, error) {
	run := reqctx.FromContext(ctx)
	report := &output.RunReport{
		RunID:         run.RunID,
		Site:          o.cfg.Site,
		StartedAt:     time.Now().UTC(),
		Announcements: []*output.Manifest{},
	}
	logger := log.With().Str("run_id", run.RunID).Str("site", o.cfg.Site).Logger()

	if err := o.cfg.Ledger.Load(); err != nil {
		logger.Error().Err(err).Msg("Failed to load ledger, starting empty")
	}
	logger.Info().Int("known", o.cfg.Ledger.Len()).Msg("Starting run")

	defer func() {
		o.state = StateIdle
		if err := o.cfg.Ledger.Flush(); err != nil {
			logger.Error().Err(err).Msg("Failed to flush ledger")
		}
		report.FinishedAt = time.Now().UTC()
		path, err := report.Write(o.cfg.Layout.SiteDir())
		if err != nil {
			logger.Error().Err(err).Msg("Failed to write run report")
			return
		}
		logger.Info().
			Str("report", path).
			Int("pages", report.PagesVisited).
			Int("announcements", len(report.Announcements)).
			Str("stop_reason", report.StopReason).
			Msg("Run finished")
	}()

	for page := 1; ; page++ {
		if ctx.Err() != nil {
			report.StopReason = string(pagination.ReasonCancelled)
			return report, ErrCancelled
		}
		if o.cfg.Policy.BeyondCeiling(page) {
			report.StopReason = string(pagination.ReasonMaxPages)
			return report, nil
		}

		o.state = StateListing
		desc := pagination.NextPage(o.cfg.Adapter, page)
		report.PagesVisited++
		parsed, err := o.listPage(ctx, desc)
		if err != nil {
			if ctx.Err() != nil {
				report.StopReason = string(pagination.ReasonCancelled)
				return report, ErrCancelled
			}
			logger.Warn().Err(err).Int("page", page).Str("url", desc.URL).Msg("List page failed, treating as empty")
			report.PageErrors = append(report.PageErrors, output.PageError{
				Page:  page,
				URL:   desc.URL,
				Kind:  string(models.KindOf(err)),
				Error: err.Error(),
			})
			parsed = nil
		}

		fresh := pagination.Fresh(parsed, o.cfg.Ledger)
		report.Skipped += len(parsed) - len(fresh)
		if done, reason := o.cfg.Policy.Exhausted(page, parsed, o.cfg.Ledger); done {
			report.StopReason = string(reason)
			return report, nil
		}

		logger.Debug().Int("page", page).Int("parsed", len(parsed)).Int("fresh", len(fresh)).Msg("Page listed")
		o.cfg.Observer.pageStart(page, len(fresh))

		for _, a := range fresh {
			if ctx.Err() != nil {
				report.StopReason = string(pagination.ReasonCancelled)
				return report, ErrCancelled
			}
			m := o.process(ctx, a)
			report.Announcements = append(report.Announcements, m)
			o.cfg.Observer.processed(m)
		}
		o.cfg.Observer.pageDone(page)
	}
}

func (o *Orchestrator) listPage(ctx context.Context, desc models.RequestDescriptor) ([]models.Announcement, error) {
	page, err := o.cfg.Fetcher.Fetch(ctx, desc)
	if err != nil {
		return nil, err
	}
	return o.cfg.Adapter.ParseList(page.Body)
}

// process handles one new announcement and reports how it went. The identity
// is added to the ledger only once content, attachments and manifest are on disk.
func (o *Orchestrator) process(ctx context.Context, a models.Announcement) *output.Manifest {
	m := &output.Manifest{
		Title:       a.Title,
		Identity:    a.Identity(),
		Source:      a.Detail.URL,
		Metadata:    a.Metadata,
		Attachments: []models.DownloadOutcome{},
		ProcessedAt: time.Now().UTC(),
	}
	logger := log.With().Str("title", a.Title).Logger()

	o.state = StateDetail
	page, err := o.cfg.Fetcher.Fetch(ctx, a.Detail)
	if err != nil {
		logger.Warn().Err(err).Str("url", a.Detail.URL).Msg("Detail fetch failed")
		m.Status = output.StatusFailed
		m.Error = (&StepError{State: StateDetail, Title: a.Title, Err: err}).Error()
		return m
	}

	detail, perr := o.cfg.Adapter.ParseDetail(page.URL, page.Body)
	body := detail.Content
	if perr != nil || body == "" {
		if perr != nil {
			logger.Warn().Err(perr).Msg("Detail content not found")
			m.Error = perr.Error()
		}
		body = content.Unavailable
	} else {
		m.Content = true
	}

	dir, err := o.cfg.Layout.Allocate(a.Title)
	if err != nil {
		return o.fail(m, logger, err)
	}
	m.Directory = dir
	if err := output.WriteContent(dir, a, body); err != nil {
		return o.fail(m, logger, err)
	}

	o.state = StateAttaching
	attDir := output.AttachmentsDir(dir)
	for i, att := range detail.Attachments {
		if ctx.Err() != nil {
			break
		}
		m.Attachments = append(m.Attachments, o.cfg.Downloader.Resolve(ctx, att, i+1, attDir))
	}
	m.Evaluate()
	// A download cut short by cancellation comes back as a failed outcome,
	// so the context is checked as well as the count.
	cancelled := ctx.Err() != nil || len(m.Attachments) < len(detail.Attachments)
	if cancelled {
		m.Status = output.StatusPartial
		m.Error = ErrCancelled.Error()
	}

	if err := output.WriteManifest(dir, m); err != nil {
		return o.fail(m, logger, err)
	}
	if cancelled {
		logger.Warn().Str("dir", dir).Msg("Attachments interrupted, announcement left for next run")
		return m
	}

	o.cfg.Ledger.Add(a.Identity())
	logger.Info().
		Str("dir", dir).
		Str("status", string(m.Status)).
		Int("attachments", len(m.Attachments)).
		Msg("Announcement saved")
	return m
}

func (o *Orchestrator) fail(m *output.Manifest, logger zerolog.Logger, err error) *output.Manifest {
	wrapped := &StepError{State: o.state, Title: m.Title, Err: err}
	logger.Error().Err(wrapped).Msg("Failed to persist announcement")
	m.Status = output.StatusFailed
	m.Error = wrapped.Error()
	return m
}
