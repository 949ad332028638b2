package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/sigillum/config"
	"github.com/ysmood/gson"
)

// maxFrameDepth bounds the recursion when enumerating nested frames.
const maxFrameDepth = 4

// frameHostsJS returns every iframe element of the document, descending into
// open shadow roots.
const frameHostsJS = `() => {
	const hosts = [];
	const walk = (root) => {
		for (const el of root.querySelectorAll('*')) {
			if (el.tagName === 'IFRAME' || el.tagName === 'FRAME') hosts.push(el);
			if (el.shadowRoot) walk(el.shadowRoot);
		}
	};
	walk(document);
	return hosts;
}`

// RodLauncher launches one dedicated Chromium process per session.
// It is safe for concurrent use; sessions share nothing.
type RodLauncher struct {
	browserCfg     config.BrowserConfig
	defaultTimeout time.Duration
	idleWindow     time.Duration
}

// NewRodLauncher creates a launcher from the browser and scraper settings.
func NewRodLauncher(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) *RodLauncher {
	return &RodLauncher{
		browserCfg:     browserCfg,
		defaultTimeout: scraperCfg.DefaultTimeout,
		idleWindow:     scraperCfg.IdleWindow,
	}
}

// Launch starts Chromium, connects to it and opens an incognito context.
// ctx bounds the launch only; the session lives until Close.
// On any failure the process is killed before returning.
func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	ln := launcher.New().
		Context(ctx).
		Headless(l.browserCfg.Headless).
		NoSandbox(l.browserCfg.NoSandbox)

	if l.browserCfg.BrowserBin != "" {
		ln = ln.Bin(l.browserCfg.BrowserBin)
	}
	if l.browserCfg.Proxy != "" {
		ln = ln.Proxy(l.browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-features"), "TranslateUI")
	ln.Set(flags.Flag("disable-popup-blocking"))
	ln.Set(flags.Flag("disable-renderer-backgrounding"))
	ln.Set(flags.Flag("disable-background-timer-throttling"))
	ln.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("no-first-run"))

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "pid", ln.PID())

	s := &rodSession{ln: ln, launcher: l}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		s.kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	s.root = browser

	incognito, err := browser.Incognito()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	s.browser = incognito

	return s, nil
}

// rodSession owns the Chromium process for one pipeline run.
type rodSession struct {
	launcher *RodLauncher
	ln       *launcher.Launcher
	root     *rod.Browser
	browser  *rod.Browser

	mu      sync.Mutex
	routers []*rod.HijackRouter
	once    sync.Once
	err     error
}

func (s *rodSession) NewPage(ctx context.Context) (Page, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	// Detach from the request context so later calls bind their own.
	page = page.Context(context.Background())

	// Stealth and hijack only affect navigations made after they are installed.
	if s.launcher.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	hijacked := false
	if router := setupHijack(page, s.launcher.browserCfg.BlockedResourceTypes); router != nil {
		s.mu.Lock()
		s.routers = append(s.routers, router)
		s.mu.Unlock()
		hijacked = true
	}

	return &rodPage{rodDocument: s.document(page, hijacked, false)}, nil
}

func (s *rodSession) document(page *rod.Page, hijacked, frame bool) rodDocument {
	return rodDocument{
		page:           page,
		defaultTimeout: s.launcher.defaultTimeout,
		idleWindow:     s.launcher.idleWindow,
		hijacked:       hijacked,
		frame:          frame,
	}
}

// Close stops request routers, closes the browser and kills the process.
// It is idempotent.
func (s *rodSession) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		for _, r := range s.routers {
			_ = r.Stop()
		}
		s.mu.Unlock()

		if s.root != nil {
			s.err = s.root.Close()
		}
		s.kill()
	})
	return s.err
}

func (s *rodSession) kill() {
	s.ln.Kill()
	s.ln.Cleanup()
}

// rodDocument implements Document over a rod page; iframes are rod pages
// bound to a frame id, so the same type serves both.
type rodDocument struct {
	page           *rod.Page
	defaultTimeout time.Duration
	idleWindow     time.Duration
	hijacked       bool
	frame          bool
}

func (d rodDocument) bind(ctx context.Context, timeout time.Duration) *rod.Page {
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}
	return d.page.Context(ctx).Timeout(timeout)
}

func (d rodDocument) WaitFor(ctx context.Context, selector string, state WaitState, timeout time.Duration) error {
	p := d.bind(ctx, timeout)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		return waitErr(err, selector)
	}
	if state == StateVisible {
		if err := el.WaitVisible(); err != nil {
			return waitErr(err, selector)
		}
	}
	return nil
}

func (d rodDocument) Query(ctx context.Context, selector string) (Element, error) {
	has, el, err := d.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return nil, err
	}
	return d.element(el), nil
}

func (d rodDocument) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = d.element(el)
	}
	return out, nil
}

func (d rodDocument) Evaluate(ctx context.Context, script string, args ...any) (gson.JSON, error) {
	p := d.bind(ctx, 0)
	defer p.CancelTimeout()

	res, err := p.Eval(script, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (d rodDocument) ContentFrame(ctx context.Context, selector string) (Frame, error) {
	has, el, err := d.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return nil, err
	}
	fp, err := el.Frame()
	if err != nil {
		return nil, err
	}
	return d.frameOf(ctx, fp, el), nil
}

func (d rodDocument) frameOf(ctx context.Context, fp *rod.Page, host *rod.Element) *rodFrame {
	doc := d
	doc.page = fp
	doc.frame = true
	url := location(ctx, fp)
	if url == "" {
		if src, err := host.Attribute("src"); err == nil && src != nil {
			url = *src
		}
	}
	return &rodFrame{rodDocument: doc, url: url}
}

// WaitNetworkIdle waits for in-flight requests to drain, then for the DOM to
// stop changing. With a hijack router installed only the DOM check runs: the
// request-idle listener conflicts with the Fetch domain interception.
func (d rodDocument) WaitNetworkIdle(ctx context.Context) error {
	p := d.bind(ctx, 0)
	defer p.CancelTimeout()

	if !d.hijacked {
		p.WaitRequestIdle(d.idleWindow, nil, nil, nil)()
	}
	if d.frame {
		return waitErr(p.WaitLoad(), "frame load")
	}
	return waitErr(p.WaitDOMStable(d.idleWindow, 0.1), "dom stable")
}

func (d rodDocument) element(el *rod.Element) *rodElement {
	return &rodElement{el: el, timeout: d.defaultTimeout}
}

type rodFrame struct {
	rodDocument
	url string
}

func (f *rodFrame) URL() string { return f.url }

type rodPage struct {
	rodDocument
}

func (pg *rodPage) Navigate(ctx context.Context, url string) error {
	p := pg.bind(ctx, 0)
	defer p.CancelTimeout()

	// The idle listener must exist before navigation or in-flight requests are missed.
	var waitIdle func()
	if !pg.hijacked {
		waitIdle = p.WaitRequestIdle(pg.idleWindow, nil, nil, nil)
	}
	if err := p.Navigate(url); err != nil {
		return waitErr(err, "navigate "+url)
	}
	if err := p.WaitLoad(); err != nil {
		return waitErr(err, "load "+url)
	}
	if waitIdle != nil {
		waitIdle()
		return nil
	}
	return waitErr(p.WaitDOMStable(pg.idleWindow, 0.1), "dom stable")
}

func (pg *rodPage) Frames(ctx context.Context) ([]Frame, error) {
	frames := []Frame{&rodFrame{rodDocument: pg.rodDocument, url: location(ctx, pg.page)}}
	return pg.collectFrames(ctx, pg.page, frames, 0)
}

func (pg *rodPage) collectFrames(ctx context.Context, p *rod.Page, out []Frame, depth int) ([]Frame, error) {
	if depth >= maxFrameDepth {
		return out, nil
	}
	hosts, err := p.Context(ctx).ElementsByJS(rod.Eval(frameHostsJS))
	if err != nil {
		return out, fmt.Errorf("list frames: %w", err)
	}
	for _, host := range hosts {
		fp, err := host.Frame()
		if err != nil {
			continue
		}
		out = append(out, pg.frameOf(ctx, fp, host))
		if out, err = pg.collectFrames(ctx, fp, out, depth+1); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (pg *rodPage) Screenshot(ctx context.Context, path string) error {
	data, err := pg.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) bind(ctx context.Context) *rod.Element {
	return e.el.Context(ctx).Timeout(e.timeout)
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	el := e.bind(ctx)
	defer el.CancelTimeout()
	return el.Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	el := e.bind(ctx)
	defer el.CancelTimeout()
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *rodElement) Checked(ctx context.Context) (bool, error) {
	el := e.bind(ctx)
	defer el.CancelTimeout()
	v, err := el.Property("checked")
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func (e *rodElement) Click(ctx context.Context) error {
	el := e.bind(ctx)
	defer el.CancelTimeout()
	return waitErr(el.Click(proto.InputMouseButtonLeft, 1), "click")
}

func (e *rodElement) Fill(ctx context.Context, value string) error {
	el := e.bind(ctx)
	defer el.CancelTimeout()
	if err := el.SelectAllText(); err != nil {
		return waitErr(err, "select text")
	}
	return waitErr(el.Input(value), "input")
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	el := e.bind(ctx)
	defer el.CancelTimeout()
	return waitErr(el.ScrollIntoView(), "scroll into view")
}

func (e *rodElement) Closest(ctx context.Context, selector string) (Element, error) {
	found, err := e.el.Context(ctx).ElementByJS(rod.Eval(`(s) => this.closest(s)`, selector))
	if errors.Is(err, &rod.ElementNotFoundError{}) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rodElement{el: found, timeout: e.timeout}, nil
}

func (e *rodElement) Query(ctx context.Context, selector string) (Element, error) {
	has, found, err := e.el.Context(ctx).Has(selector)
	if err != nil || !has {
		return nil, err
	}
	return &rodElement{el: found, timeout: e.timeout}, nil
}

// location reads the document URL of a page or frame, empty on failure.
func location(ctx context.Context, p *rod.Page) string {
	res, err := p.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// waitErr marks deadline errors as ErrTimeout so callers can tell an elapsed
// wait from any other automation fault.
func waitErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
