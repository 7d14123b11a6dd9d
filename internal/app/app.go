// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/law-makers/harvest/internal/config"
	"github.com/law-makers/harvest/internal/downloader"
	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/engine/pagination"
	"github.com/law-makers/harvest/internal/ledger"
	"github.com/law-makers/harvest/internal/output"
	"github.com/law-makers/harvest/internal/proxy"
	"github.com/law-makers/harvest/internal/ratelimit"
	"github.com/law-makers/harvest/internal/reqctx"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/internal/sites"
	"github.com/law-makers/harvest/internal/transport"
	"github.com/law-makers/harvest/internal/utils/headers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
type Application struct {
	Config    *config.Config
	Sites     *config.SiteFile
	Logger    *zerolog.Logger
	Proxies   *proxy.Pool
	startTime time.Time
}

// RunOptions carry per-invocation extras from the run command
type RunOptions struct {
	Headers  map[string]string
	Observer engine.Observer
}

// New creates and initializes a new Application.
//
// It configures logging, loads the sites file and parses the proxy list.
// If any step fails, an error is returned.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := newLogger(cfg)
	log.Logger = logger

	siteFile, err := config.LoadSites(cfg.SitesFile)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("file", cfg.SitesFile).
		Strs("sites", siteFile.Codes()).
		Msg("Sites loaded")

	proxies, err := proxy.Parse(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy list: %w", err)
	}
	if proxies.Len() > 0 {
		logger.Debug().Int("proxies", proxies.Len()).Msg("Proxy pool initialized")
	}

	return &Application{
		Config:    cfg,
		Sites:     siteFile,
		Logger:    &logger,
		Proxies:   proxies,
		startTime: time.Now(),
	}, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	// "info" stays quiet so progress bars own the terminal; -v shows everything.
	level := zerolog.WarnLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.JSONLog {
		w = os.Stderr
	} else {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// OutputDir resolves the output root: flag or environment, then the sites
// file default, then the built-in default.
func (a *Application) OutputDir() string {
	if a.Config.OutputDir != config.DefaultOutputDir || a.Sites.Defaults.OutputDir == "" {
		return a.Config.OutputDir
	}
	return a.Sites.Defaults.OutputDir
}

// Harvest runs one site to completion. Only a failure to create the output
// root, open the ledger or build the site's collaborators is returned as an
// error; a cancelled run returns its report with engine.ErrCancelled.
func (a *Application) Harvest(ctx context.Context, code string, opts RunOptions) (*output.RunReport, error) {
	site, err := a.Sites.Site(code)
	if err != nil {
		return nil, err
	}
	adapter, err := sites.New(site)
	if err != nil {
		return nil, err
	}

	layout, err := output.NewLayout(a.OutputDir(), code)
	if err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}
	led, err := ledger.Open(a.Config.LedgerBackend, layout.SiteDir(), code)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := led.Close(); err != nil {
			a.Logger.Warn().Err(err).Str("site", code).Msg("Error closing ledger")
		}
	}()

	session, err := a.session(site, opts.Headers)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	policy := pagination.Policy{
		MaxPages:           a.Sites.MaxPagesFor(site, a.Config.MaxPages),
		StopEarly:          a.Config.StopEarly,
		DuplicateThreshold: a.Config.DuplicateThreshold,
	}
	ctx = reqctx.WithRun(ctx, code)
	run := reqctx.FromContext(ctx)
	a.Logger.Info().
		Str("run_id", run.RunID).
		Str("site", code).
		Str("type", site.Type).
		Int("max_pages", policy.MaxPages).
		Bool("stop_early", policy.StopEarly).
		Msg("Harvesting site")

	orch := engine.New(engine.Config{
		Site:       code,
		Adapter:    adapter,
		Fetcher:    session,
		Downloader: downloader.NewResolver(session),
		Ledger:     led,
		Layout:     layout,
		Policy:     policy,
		Observer:   opts.Observer,
	})
	report, err := orch.Run(ctx)
	if err != nil && !errors.Is(err, engine.ErrCancelled) {
		return report, reqctx.NewRunError(ctx, err)
	}
	return report, err
}

// OpenLedger loads a site's ledger for inspection. Callers must Close it.
func (a *Application) OpenLedger(code string) (ledger.Ledger, error) {
	if _, err := a.Sites.Site(code); err != nil {
		return nil, err
	}
	led, err := ledger.Open(a.Config.LedgerBackend, filepath.Join(a.OutputDir(), code), code)
	if err != nil {
		return nil, err
	}
	if err := led.Load(); err != nil {
		_ = led.Close()
		return nil, err
	}
	return led, nil
}

func (a *Application) session(site *config.Site, extra map[string]string) (*transport.Session, error) {
	delay := a.Sites.DelayFor(site, a.Config.RequestDelay)
	rc := retry.DefaultConfig()
	rc.MaxAttempts = a.Config.RetryAttempts

	a.Logger.Debug().
		Str("site", site.Code).
		Dur("delay", delay).
		Bool("verify_tls", site.VerifyTLS()).
		Str("encoding", site.Encoding).
		Msg("Creating session")

	return transport.NewSession(transport.Options{
		Timeout:            a.Config.HTTPTimeout,
		UserAgent:          a.Config.UserAgent,
		Proxies:            a.Proxies,
		InsecureSkipVerify: !site.VerifyTLS(),
		Headers:            headers.Merge(site.Headers, extra),
		Referer:            site.BaseURL,
		Encoding:           site.Encoding,
		Limiter:            ratelimit.NewDelayLimiter(delay),
		Retry:              rc,
	})
}

// Close releases application resources
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Dur("uptime", time.Since(a.startTime)).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
