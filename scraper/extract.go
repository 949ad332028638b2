package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/ysmood/gson"

	"github.com/use-agent/sigillum/engine"
	"github.com/use-agent/sigillum/models"
)

// missingError is an extraction problem caused by absent markup rather than
// by the browser.
type missingError struct{ msg string }

func (e *missingError) Error() string { return e.msg }

func missing(format string, args ...any) error {
	return &missingError{msg: fmt.Sprintf(format, args...)}
}

func isMissing(err error) bool {
	var m *missingError
	return errors.As(err, &m)
}

// extract reaches the dossier view behind the shadow root, expands the
// repeated-dose toxicity section and reads its key information. Failures
// are recorded in the result and never returned.
func (r *run) extract(ctx context.Context, page engine.Page) *models.ExtractionResult {
	res := &models.ExtractionResult{}

	frame, err := r.dossierFrame(ctx, page)
	if err != nil {
		r.recordFault(ctx, page, res, err)
		return res
	}

	if err := r.expandSummary(ctx, frame, res); err != nil {
		r.recordFault(ctx, page, res, err)
		return res
	}

	res.Summary = r.summary(ctx, page, frame)
	return res
}

// recordFault stores err on res. Faults that are not missing markup also
// leave a screenshot of the page behind.
func (r *run) recordFault(ctx context.Context, page engine.Page, res *models.ExtractionResult, err error) {
	res.Error = err.Error()
	if isMissing(err) {
		r.emitErr(ctx, StageExtraction, "extraction stopped", err)
		return
	}
	r.emitErr(ctx, StageExtraction, "extraction failed", err)

	path := r.s.output.ScreenshotPath
	if path == "" {
		return
	}
	if shotErr := page.Screenshot(context.WithoutCancel(ctx), path); shotErr != nil {
		r.emitErr(ctx, StageExtraction, "failed to capture error screenshot", shotErr)
		return
	}
	r.emit(ctx, StageExtraction, "error screenshot saved", "path", path)
}

// ── 7. Nested context ─────────────────────────────────────────────────

// dossierFrame resolves the frame of the iframe living inside the dossier
// view component's shadow root.
func (r *run) dossierFrame(ctx context.Context, page engine.Page) (engine.Frame, error) {
	if err := page.WaitFor(ctx, r.sel.DossierHost, engine.StateAttached, r.cfg.ShadowTimeout); err != nil {
		return nil, fmt.Errorf("dossier view component did not appear: %w", err)
	}

	v, err := page.Evaluate(ctx, shadowIframeSrcJS, r.sel.DossierHost, r.sel.DossierIframe)
	if err != nil {
		return nil, fmt.Errorf("failed to read dossier view iframe: %w", err)
	}
	src := jsonString(v)
	if src == "" {
		return nil, missing("iframe not found inside the dossier view shadow root")
	}
	r.emit(ctx, StageNestedContext, "dossier view iframe found", "src", src)

	frames, err := page.Frames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	frame, how := resolveFrame(frames, src, dossierFrameChain)
	if frame == nil {
		return nil, missing("dossier view frame not found")
	}
	r.emit(ctx, StageNestedContext, "dossier view frame resolved", "strategy", how, "frameURL", frame.URL())

	if err := frame.WaitNetworkIdle(ctx); err != nil {
		return nil, fmt.Errorf("dossier view did not settle: %w", err)
	}
	return frame, nil
}

// ── 8a. Section expansion ─────────────────────────────────────────────

// expandSummary opens the toxicology section, its repeated-dose subsection
// and finally the summary document. res.ToxicologyAccessed is set as soon
// as the toxicology section is open, even if a later step fails.
func (r *run) expandSummary(ctx context.Context, frame engine.Frame, res *models.ExtractionResult) error {
	if err := r.reveal(ctx, frame, r.sel.ToxicologyToggle, "toxicology section"); err != nil {
		return err
	}
	res.ToxicologyAccessed = true

	if err := r.reveal(ctx, frame, r.sel.RepeatedDoseToggle, "repeated dose toxicity section"); err != nil {
		return err
	}
	return r.reveal(ctx, frame, r.sel.SummaryLink, "repeated dose toxicity summary")
}

// reveal scrolls the control into view, lets layout settle, clicks it and
// waits for the expansion to render before the next lookup.
func (r *run) reveal(ctx context.Context, frame engine.Frame, selector, what string) error {
	el, err := frame.Query(ctx, selector)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if el == nil {
		return missing("%s control not found", what)
	}
	if err := el.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := engine.Pause(ctx, r.cfg.SettlePause); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := engine.Pause(ctx, r.cfg.ExpandPause); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	r.emit(ctx, StageExtraction, what+" opened")
	return nil
}

// ── 8b. Document extraction ───────────────────────────────────────────

// summary reads the key information from the document view nested in the
// dossier frame. Frames are listed from the page because the document view
// is a frame of the whole page tree.
func (r *run) summary(ctx context.Context, page engine.Page, frame engine.Frame) *models.SummaryData {
	sd := &models.SummaryData{}
	fail := func(err error) *models.SummaryData {
		sd.Error = err.Error()
		r.emitErr(ctx, StageExtraction, "summary extraction stopped", err)
		return sd
	}

	v, err := frame.Evaluate(ctx, iframeSrcJS, r.sel.DocumentIframe)
	if err != nil {
		return fail(fmt.Errorf("failed to read document view iframe: %w", err))
	}
	src := jsonString(v)
	if src == "" {
		return fail(missing("document view iframe not found"))
	}
	sd.IframeFound = true
	r.emit(ctx, StageExtraction, "document view iframe found", "src", src)

	doc, err := r.documentFrame(ctx, page, frame, src)
	if err != nil {
		return fail(err)
	}
	if err := doc.WaitNetworkIdle(ctx); err != nil {
		return fail(fmt.Errorf("document view did not settle: %w", err))
	}

	v, err = doc.Evaluate(ctx, keyInfoJS,
		r.sel.KeyInfoSection, r.sel.BlockSection, r.sel.BlockLabel, r.sel.KeyInfoHeading, r.sel.FieldValue)
	if err != nil {
		return fail(fmt.Errorf("failed to read key information: %w", err))
	}
	if !v.Get("found").Bool() {
		msg := jsonString(v.Get("error"))
		if msg == "" {
			msg = "unknown error extracting key information"
		}
		return fail(missing("%s", msg))
	}

	sd.ContentExtracted = true
	sd.KeyInfo = r.keyInfo(ctx, jsonString(v.Get("content")), jsonString(v.Get("textContent")))
	return sd
}

// documentFrame resolves the document view by URL, falling back to the
// iframe element's own content frame.
func (r *run) documentFrame(ctx context.Context, page engine.Page, frame engine.Frame, src string) (engine.Frame, error) {
	frames, err := page.Frames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	if doc, how := resolveFrame(frames, src, documentFrameChain); doc != nil {
		r.emit(ctx, StageExtraction, "document view frame resolved", "strategy", how, "frameURL", doc.URL())
		return doc, nil
	}

	doc, err := frame.ContentFrame(ctx, r.sel.DocumentIframe)
	if err != nil {
		return nil, fmt.Errorf("failed to open document view frame: %w", err)
	}
	if doc == nil {
		return nil, missing("document view frame not found")
	}
	r.emit(ctx, StageExtraction, "document view frame resolved", "strategy", "content_frame", "frameURL", doc.URL())
	return doc, nil
}

// keyInfo normalizes the fragment and persists it. Neither step can fail the
// extraction; the raw values are kept when cleaning fails. The browser text
// is returned as read; it is only rebuilt from the markup when blank.
func (r *run) keyInfo(ctx context.Context, html, text string) *models.KeyInfo {
	ki := &models.KeyInfo{HTMLContent: html, TextContent: text}

	frag, err := r.s.cleaner.Normalize(html, text)
	if err != nil {
		r.emitErr(ctx, StageExtraction, "failed to normalize key information", err)
	} else {
		ki.TextContent = frag.Text
		ki.Markdown = frag.Markdown
	}

	if path := r.s.output.ArtifactPath; path != "" {
		if err := writeArtifact(path, html); err != nil {
			r.emitErr(ctx, StageArtifact, "failed to save key information", err, "path", path)
		} else {
			r.emit(ctx, StageArtifact, "key information saved", "path", path)
		}
	}
	return ki
}

// jsonString returns the string value of v, or "" for null and non-strings.
func jsonString(v gson.JSON) string {
	if s, ok := v.Val().(string); ok {
		return s
	}
	return ""
}
