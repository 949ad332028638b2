package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ysmood/gson"

	"github.com/use-agent/sigillum/engine"
)

// The fake backend scripts a DOM per document: selectors map to elements,
// scripts map to evaluation results. A WaitFor on an absent selector times
// out immediately.

type fakeLauncher struct {
	session *fakeSession
	err     error
}

func (l *fakeLauncher) Launch(context.Context) (engine.Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

type fakeSession struct {
	mu      sync.Mutex
	page    *fakePage
	pageErr error
	closes  int
}

func (s *fakeSession) NewPage(context.Context) (engine.Page, error) {
	if s.pageErr != nil {
		return nil, s.pageErr
	}
	return s.page, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeDoc struct {
	url      string
	elements map[string][]*fakeElement
	evals    map[string]any
	content  map[string]*fakeFrame
	idleErr  error
	// onWait runs before every WaitFor.
	onWait func(ctx context.Context, selector string)
}

func newFakeDoc(url string) *fakeDoc {
	return &fakeDoc{
		url:      url,
		elements: map[string][]*fakeElement{},
		evals:    map[string]any{},
		content:  map[string]*fakeFrame{},
	}
}

func (d *fakeDoc) set(selector string, els ...*fakeElement) { d.elements[selector] = els }

func (d *fakeDoc) WaitFor(ctx context.Context, selector string, state engine.WaitState, _ time.Duration) error {
	if d.onWait != nil {
		d.onWait(ctx, selector)
	}
	els := d.elements[selector]
	if len(els) == 0 {
		return fmt.Errorf("%w: waiting for %q", engine.ErrTimeout, selector)
	}
	if state == engine.StateVisible && els[0].hidden {
		return fmt.Errorf("%w: %q is not visible", engine.ErrTimeout, selector)
	}
	return nil
}

func (d *fakeDoc) Query(_ context.Context, selector string) (engine.Element, error) {
	if els := d.elements[selector]; len(els) > 0 {
		return els[0], nil
	}
	return nil, nil
}

func (d *fakeDoc) QueryAll(_ context.Context, selector string) ([]engine.Element, error) {
	els := d.elements[selector]
	out := make([]engine.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (d *fakeDoc) Evaluate(_ context.Context, script string, _ ...any) (gson.JSON, error) {
	v, ok := d.evals[script]
	if !ok {
		return gson.New(nil), nil
	}
	if err, isErr := v.(error); isErr {
		return gson.New(nil), err
	}
	return gson.New(v), nil
}

func (d *fakeDoc) ContentFrame(_ context.Context, selector string) (engine.Frame, error) {
	if f, ok := d.content[selector]; ok {
		return f, nil
	}
	return nil, nil
}

func (d *fakeDoc) WaitNetworkIdle(context.Context) error { return d.idleErr }

type fakeFrame struct {
	*fakeDoc
}

func newFakeFrame(url string) *fakeFrame { return &fakeFrame{fakeDoc: newFakeDoc(url)} }

func (f *fakeFrame) URL() string { return f.url }

type fakePage struct {
	*fakeDoc
	frames      []*fakeFrame
	navigated   []string
	navErr      error
	screenshots []string
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	return p.navErr
}

func (p *fakePage) Frames(context.Context) ([]engine.Frame, error) {
	out := []engine.Frame{&fakeFrame{fakeDoc: p.fakeDoc}}
	for _, f := range p.frames {
		out = append(out, f)
	}
	return out, nil
}

func (p *fakePage) Screenshot(_ context.Context, path string) error {
	p.screenshots = append(p.screenshots, path)
	return nil
}

type fakeElement struct {
	name     string
	text     string
	attrs    map[string]string
	checked  bool
	hidden   bool
	clicks   int
	scrolled int
	filled   string
	closest  map[string]*fakeElement
	children map[string]*fakeElement
	onClick  func()
}

func newFakeElement(name string) *fakeElement {
	return &fakeElement{
		name:     name,
		attrs:    map[string]string{},
		closest:  map[string]*fakeElement{},
		children: map[string]*fakeElement{},
	}
}

func (e *fakeElement) Text(context.Context) (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) Checked(context.Context) (bool, error) { return e.checked, nil }

func (e *fakeElement) Click(context.Context) error {
	e.clicks++
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Fill(_ context.Context, value string) error {
	e.filled = value
	return nil
}

func (e *fakeElement) ScrollIntoView(context.Context) error {
	e.scrolled++
	return nil
}

func (e *fakeElement) Closest(_ context.Context, selector string) (engine.Element, error) {
	if el, ok := e.closest[selector]; ok {
		return el, nil
	}
	return nil, nil
}

func (e *fakeElement) Query(_ context.Context, selector string) (engine.Element, error) {
	if el, ok := e.children[selector]; ok {
		return el, nil
	}
	return nil, nil
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// attr returns the value of key on the first event carrying message.
func (r *recorder) attr(message, key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Message != message {
			continue
		}
		for i := 0; i+1 < len(e.Attrs); i += 2 {
			if e.Attrs[i] == key {
				return e.Attrs[i+1], true
			}
		}
	}
	return nil, false
}
