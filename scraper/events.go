package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Stage names a step of the pipeline in emitted events.
type Stage string

const (
	StageBootstrap     Stage = "bootstrap"
	StageConsent       Stage = "consent"
	StageSearch        Stage = "search"
	StageResults       Stage = "results"
	StageRegistrations Stage = "registrations"
	StageLeadDossier   Stage = "lead_dossier"
	StageNestedContext Stage = "nested_context"
	StageExtraction    Stage = "extraction"
	StageArtifact      Stage = "artifact"
	StageTeardown      Stage = "teardown"
	StageDone          Stage = "done"
)

// Event is one observable step of a run. Attrs are alternating key/value
// pairs in the log/slog convention.
type Event struct {
	CASCode string
	Stage   Stage
	Message string
	Attrs   []any
	Err     error
}

// Observer receives pipeline events. Implementations must be safe for
// concurrent use when the Scraper serves concurrent runs.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

// SlogObserver writes one structured record per event.
type SlogObserver struct {
	Logger *slog.Logger
}

// NewSlogObserver returns an observer on logger, or slog.Default when nil.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{Logger: logger}
}

func (o *SlogObserver) Observe(ctx context.Context, e Event) {
	args := make([]any, 0, len(e.Attrs)+6)
	args = append(args, "casCode", e.CASCode, "stage", string(e.Stage))
	args = append(args, e.Attrs...)
	level := slog.LevelInfo
	if e.Err != nil {
		level = slog.LevelWarn
		args = append(args, "error", e.Err)
	}
	o.Logger.Log(ctx, level, e.Message, args...)
}

// NarrationObserver prints a human-readable line per event, used by the
// command-line tool's demo mode.
type NarrationObserver struct {
	mu sync.Mutex
	w  io.Writer
}

func NewNarrationObserver(w io.Writer) *NarrationObserver {
	return &NarrationObserver{w: w}
}

func (o *NarrationObserver) Observe(_ context.Context, e Event) {
	var b strings.Builder
	mark := "ok"
	if e.Err != nil {
		mark = "!!"
	}
	fmt.Fprintf(&b, "[%s] %-14s %s", mark, e.Stage, e.Message)
	for i := 0; i+1 < len(e.Attrs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", e.Attrs[i], e.Attrs[i+1])
	}
	if e.Err != nil {
		fmt.Fprintf(&b, " (%v)", e.Err)
	}
	b.WriteByte('\n')

	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = io.WriteString(o.w, b.String())
}

// MultiObserver forwards every event to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) Observe(ctx context.Context, e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(ctx, e)
		}
	}
}
