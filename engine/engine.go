// Package engine defines the browser-automation capabilities the scraping
// pipeline depends on, and a go-rod implementation of them.
//
// The pipeline only talks to these interfaces; tests drive it with an
// in-memory fake instead of a real browser.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ysmood/gson"
)

// ErrTimeout is wrapped by every bounded wait that elapses.
var ErrTimeout = errors.New("timed out")

// WaitState is the condition WaitFor waits for.
type WaitState int

const (
	// StateAttached is satisfied once a matching element is in the DOM.
	StateAttached WaitState = iota
	// StateVisible additionally requires the element to be rendered visibly.
	StateVisible
)

// Launcher opens isolated browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session owns a browser process (or browser context) and its pages.
// Close releases everything the session opened.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Document is anything that holds a DOM: the top-level page or a frame.
type Document interface {
	// WaitFor blocks until an element matching selector reaches state. A zero
	// timeout uses the session default. Elapsed waits wrap ErrTimeout.
	WaitFor(ctx context.Context, selector string, state WaitState, timeout time.Duration) error

	// Query returns the first match without waiting, or nil when absent.
	Query(ctx context.Context, selector string) (Element, error)

	// QueryAll returns all matches in document order without waiting.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// Evaluate runs a JS function expression in the document and returns its
	// JSON result.
	Evaluate(ctx context.Context, script string, args ...any) (gson.JSON, error)

	// ContentFrame returns the frame hosted by the iframe matching selector,
	// or nil when there is no such iframe.
	ContentFrame(ctx context.Context, selector string) (Frame, error)

	// WaitNetworkIdle blocks until network activity has settled.
	WaitNetworkIdle(ctx context.Context) error
}

// Frame is a browsing context nested in a page.
type Frame interface {
	Document
	URL() string
}

// Page is the top-level browsing context of a session.
type Page interface {
	Document
	Navigate(ctx context.Context, url string) error

	// Frames lists every browsing context of the page in document order,
	// the main frame first, including frames hosted inside shadow roots.
	Frames(ctx context.Context) ([]Frame, error)

	Screenshot(ctx context.Context, path string) error
}

// Element is a handle to a DOM element.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Checked(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	ScrollIntoView(ctx context.Context) error

	// Closest returns the nearest ancestor-or-self matching selector, or nil.
	Closest(ctx context.Context, selector string) (Element, error)

	// Query returns the first descendant matching selector, or nil.
	Query(ctx context.Context, selector string) (Element, error)
}

// Pause waits for d or until ctx is done.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
