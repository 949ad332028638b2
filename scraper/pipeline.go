package scraper

import (
	"context"
	"errors"

	"github.com/use-agent/sigillum/engine"
	"github.com/use-agent/sigillum/models"
)

// pipeline runs the navigation stages in order and hands the lead dossier
// page to the extractor. The first stage error ends the run.
//
// Ordering notes:
//   - Only the result-table wait may end the run as no_results. Every later
//     wait that elapses is an error, since a substance was already matched.
//   - Extraction never fails the run. Its problems are recorded in the
//     returned ExtractionResult.
func (r *run) pipeline(ctx context.Context, session engine.Session) (*models.ExtractionResult, *models.ScrapeError) {
	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	// ── 1b. Registry home page ────────────────────────────────────────
	if err := page.Navigate(ctx, r.cfg.BaseURL); err != nil {
		return nil, categorizeError(err, "registry home page did not load in time")
	}
	r.emit(ctx, StageBootstrap, "home page loaded", "url", r.cfg.BaseURL)

	// ── 2. Legal notice ───────────────────────────────────────────────
	if serr := r.acceptConsent(ctx, page); serr != nil {
		return nil, serr
	}

	// ── 3. Search ─────────────────────────────────────────────────────
	if serr := r.search(ctx, page); serr != nil {
		return nil, serr
	}

	// ── 4. First result ───────────────────────────────────────────────
	if serr := r.openFirstResult(ctx, page); serr != nil {
		return nil, serr
	}

	// ── 5. REACH registrations ────────────────────────────────────────
	if serr := r.openRegistrations(ctx, page); serr != nil {
		return nil, serr
	}

	// ── 6. Lead dossier ───────────────────────────────────────────────
	if serr := r.openLeadDossier(ctx, page); serr != nil {
		return nil, serr
	}

	// ── 7-8. Nested context and key information ──────────────────────
	return r.extract(ctx, page), nil
}

// acceptConsent ticks the legal-notice checkbox through its label, which is
// where the page binds the click handler.
func (r *run) acceptConsent(ctx context.Context, page engine.Page) *models.ScrapeError {
	if err := page.WaitFor(ctx, r.sel.ConsentLabel, engine.StateVisible, 0); err != nil {
		return categorizeError(err, "legal notice did not appear in time")
	}
	checkbox, err := page.Query(ctx, r.sel.ConsentCheckbox)
	if err != nil {
		return categorizeError(err, "failed to query legal notice checkbox")
	}
	label, err := page.Query(ctx, r.sel.ConsentLabel)
	if err != nil {
		return categorizeError(err, "failed to query legal notice label")
	}
	if checkbox == nil || label == nil {
		return structural("legal notice checkbox or label not found")
	}

	checked, err := checkbox.Checked(ctx)
	if err != nil {
		return categorizeError(err, "failed to read legal notice checkbox")
	}
	if checked {
		r.emit(ctx, StageConsent, "legal notice already accepted")
		return nil
	}
	if err := label.Click(ctx); err != nil {
		return categorizeError(err, "failed to accept legal notice")
	}
	r.emit(ctx, StageConsent, "legal notice accepted")
	return nil
}

func (r *run) search(ctx context.Context, page engine.Page) *models.ScrapeError {
	if err := page.WaitFor(ctx, r.sel.SearchInput, engine.StateVisible, 0); err != nil {
		return categorizeError(err, "search form did not appear in time")
	}
	input, err := page.Query(ctx, r.sel.SearchInput)
	if err != nil {
		return categorizeError(err, "failed to query search input")
	}
	button, err := page.Query(ctx, r.sel.SearchButton)
	if err != nil {
		return categorizeError(err, "failed to query search button")
	}
	if input == nil || button == nil {
		return structural("search input or button not found")
	}

	if err := input.Fill(ctx, r.out.CASCode); err != nil {
		return categorizeError(err, "failed to type the identifier")
	}
	if err := button.Click(ctx); err != nil {
		return categorizeError(err, "failed to submit the search")
	}
	r.emit(ctx, StageSearch, "search submitted")
	return nil
}

func (r *run) openFirstResult(ctx context.Context, page engine.Page) *models.ScrapeError {
	if err := page.WaitFor(ctx, r.sel.ResultRows, engine.StateAttached, r.cfg.ResultTimeout); err != nil {
		// Only the stage's own bound means "no match"; an expired run is an error.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return categorizeError(ctxErr, "run deadline expired while waiting for search results")
		}
		if errors.Is(err, engine.ErrTimeout) {
			return models.NewScrapeError(models.ErrCodeNoResults, "no results found for the search", err)
		}
		return categorizeError(err, "result table did not appear")
	}

	link, err := page.Query(ctx, r.sel.FirstResultLink)
	if err != nil {
		return categorizeError(err, "failed to query first result")
	}
	if link == nil {
		return structural("link not found in the first result row")
	}
	return r.follow(ctx, page, link, StageResults, "opening first result")
}

// follow clicks link and waits for the resulting navigation to settle. The
// link target is only reported, never navigated to directly.
func (r *run) follow(ctx context.Context, page engine.Page, link engine.Element, stage Stage, msg string) *models.ScrapeError {
	href, _, err := link.Attribute(ctx, "href")
	if err != nil {
		return categorizeError(err, "failed to read link target")
	}
	r.emit(ctx, stage, msg, "href", href)

	if err := link.Click(ctx); err != nil {
		return categorizeError(err, "failed to open "+string(stage)+" link")
	}
	if err := page.WaitNetworkIdle(ctx); err != nil {
		return categorizeError(err, "page did not settle after opening "+string(stage)+" link")
	}
	return nil
}
