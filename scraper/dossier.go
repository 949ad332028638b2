package scraper

import (
	"context"
	"strings"

	"github.com/use-agent/sigillum/engine"
	"github.com/use-agent/sigillum/models"
)

// openRegistrations follows the registrations-count widget. The visible
// control is a label; the clickable element is its enclosing anchor.
func (r *run) openRegistrations(ctx context.Context, page engine.Page) *models.ScrapeError {
	if err := page.WaitFor(ctx, r.sel.RegistrationsLabel, engine.StateAttached, r.cfg.DossierTimeout); err != nil {
		return categorizeError(err, "REACH registrations link did not appear in time")
	}
	label, err := page.Query(ctx, r.sel.RegistrationsLabel)
	if err != nil {
		return categorizeError(err, "failed to query REACH registrations label")
	}
	if label == nil {
		return structural("REACH registrations link not found")
	}
	link, err := label.Closest(ctx, "a")
	if err != nil {
		return categorizeError(err, "failed to resolve REACH registrations link")
	}
	if link == nil {
		return structural("REACH registrations link not found")
	}
	return r.follow(ctx, page, link, StageRegistrations, "opening REACH registrations")
}

// openLeadDossier opens the dossier whose role cell names the lead registrant.
func (r *run) openLeadDossier(ctx context.Context, page engine.Page) *models.ScrapeError {
	if err := page.WaitFor(ctx, r.sel.DossierRole, engine.StateAttached, r.cfg.DossierTimeout); err != nil {
		return categorizeError(err, "dossier table did not appear in time")
	}
	cells, err := page.QueryAll(ctx, r.sel.DossierRole)
	if err != nil {
		return categorizeError(err, "failed to query dossier roles")
	}

	idx, err := findLead(ctx, cells, r.sel.LeadRole)
	if err != nil {
		return categorizeError(err, "failed to read dossier roles")
	}
	if idx < 0 {
		return structural("no Lead dossier found")
	}
	r.emit(ctx, StageLeadDossier, "lead dossier found", "row", idx+1, "rows", len(cells))

	row, err := cells[idx].Closest(ctx, r.sel.DossierRow)
	if err != nil {
		return categorizeError(err, "failed to resolve lead dossier row")
	}
	if row == nil {
		return structural("lead dossier row not found")
	}
	link, err := row.Query(ctx, r.sel.DossierLink)
	if err != nil {
		return categorizeError(err, "failed to query lead dossier link")
	}
	if link == nil {
		return structural("dossier link not found in the Lead row")
	}
	return r.follow(ctx, page, link, StageLeadDossier, "opening lead dossier")
}

// findLead returns the index of the first role cell whose trimmed,
// lower-cased text contains role, or -1. Every cell is examined until a
// match is found.
func findLead(ctx context.Context, cells []engine.Element, role string) (int, error) {
	needle := strings.ToLower(strings.TrimSpace(role))
	for i, cell := range cells {
		text, err := cell.Text(ctx)
		if err != nil {
			return -1, err
		}
		if strings.Contains(strings.ToLower(strings.TrimSpace(text)), needle) {
			return i, nil
		}
	}
	return -1, nil
}
