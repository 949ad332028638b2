// Package scraper runs the registry navigation pipeline: it drives one
// browser session from the home page to the lead registration dossier and
// extracts the repeated-dose toxicity key information from it.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/use-agent/sigillum/cleaner"
	"github.com/use-agent/sigillum/config"
	"github.com/use-agent/sigillum/engine"
	"github.com/use-agent/sigillum/models"
)

// Scraper owns the launcher and bounds how many sessions run at once.
// Every Run gets its own session. It is safe for concurrent use.
type Scraper struct {
	launcher    engine.Launcher
	cfg         config.ScraperConfig
	output      config.OutputConfig
	sel         config.Selectors
	observer    Observer
	cleaner     *cleaner.Cleaner
	sessions    *semaphore.Weighted
	maxSessions int
	active      atomic.Int32
	total       atomic.Int64
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithObserver replaces the default slog observer.
func WithObserver(o Observer) Option {
	return func(s *Scraper) { s.observer = o }
}

// WithOutput sets where the artifact and error screenshot are written.
func WithOutput(out config.OutputConfig) Option {
	return func(s *Scraper) { s.output = out }
}

// WithSelectors replaces the default selector table.
func WithSelectors(sel config.Selectors) Option {
	return func(s *Scraper) { s.sel = sel }
}

// WithMaxSessions caps concurrently open sessions. Values below 1 mean 1.
func WithMaxSessions(n int) Option {
	return func(s *Scraper) { s.maxSessions = n }
}

// New creates a Scraper on top of launcher.
func New(launcher engine.Launcher, cfg config.ScraperConfig, opts ...Option) *Scraper {
	s := &Scraper{
		launcher:    launcher,
		cfg:         cfg,
		sel:         config.DefaultSelectors(),
		maxSessions: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.observer == nil {
		s.observer = NewSlogObserver(nil)
	}
	if s.maxSessions < 1 {
		s.maxSessions = 1
	}
	s.sessions = semaphore.NewWeighted(int64(s.maxSessions))
	s.cleaner = cleaner.NewCleaner(cfg.BaseURL)
	return s
}

// Stats returns a snapshot of session usage.
func (s *Scraper) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    s.maxSessions,
		ActiveSessions: int(s.active.Load()),
		TotalRuns:      s.total.Load(),
	}
}

// Run executes the whole pipeline for identifier and always returns a
// terminal outcome. The session opened for the run is closed exactly once
// before Run returns, whichever stage ended it.
func (s *Scraper) Run(ctx context.Context, identifier string) *models.ScrapeOutcome {
	start := time.Now()
	out := models.NewOutcome(models.NormalizeCAS(identifier))
	defer func() { out.DurationMs = time.Since(start).Milliseconds() }()

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	if err := s.sessions.Acquire(ctx, 1); err != nil {
		out.Fail(models.NewScrapeError(models.ErrCodeTimeout, "no browser session became available", err))
		return out
	}
	defer s.sessions.Release(1)

	s.active.Add(1)
	defer s.active.Add(-1)
	s.total.Add(1)

	r := &run{s: s, sel: s.sel, cfg: s.cfg, out: out}
	r.execute(ctx)

	r.emit(ctx, StageDone, string(out.Status), "message", out.Message)
	return out
}

// run is the state of one pipeline execution.
type run struct {
	s   *Scraper
	sel config.Selectors
	cfg config.ScraperConfig
	out *models.ScrapeOutcome
}

func (r *run) execute(ctx context.Context) {
	// Registered first so it runs after teardown.
	defer func() {
		if p := recover(); p != nil {
			r.out.Finish(models.StatusError, fmt.Sprintf("unexpected error: %v", p), nil)
		}
	}()

	// ── 1. Session bootstrap ──────────────────────────────────────────
	session, err := r.s.launcher.Launch(ctx)
	if err != nil {
		r.out.Fail(models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err))
		return
	}
	defer r.teardown(ctx, session)

	data, serr := r.pipeline(ctx, session)
	if serr != nil {
		r.emit(ctx, StageDone, "pipeline stopped", "code", serr.Code)
		r.out.Fail(serr)
		return
	}
	r.out.Finish(models.StatusSuccess, "scrape completed", data)
}

func (r *run) teardown(ctx context.Context, session engine.Session) {
	if err := session.Close(); err != nil {
		r.emitErr(ctx, StageTeardown, "failed to close browser session", err)
		return
	}
	r.emit(ctx, StageTeardown, "browser session closed")
}

func (r *run) emit(ctx context.Context, stage Stage, msg string, attrs ...any) {
	r.s.observer.Observe(ctx, Event{CASCode: r.out.CASCode, Stage: stage, Message: msg, Attrs: attrs})
}

func (r *run) emitErr(ctx context.Context, stage Stage, msg string, err error, attrs ...any) {
	r.s.observer.Observe(ctx, Event{CASCode: r.out.CASCode, Stage: stage, Message: msg, Attrs: attrs, Err: err})
}

// categorizeError turns an automation failure into a stage error. Elapsed
// waits keep their timeout code; anything else is an unexpected fault.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, engine.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeInternal, "unexpected error: "+err.Error(), err)
	}
}

func structural(msg string) *models.ScrapeError {
	return models.NewScrapeError(models.ErrCodeStructural, msg, nil)
}
