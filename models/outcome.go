package models

import "strings"

// Status is the lifecycle state of a ScrapeOutcome.
type Status string

const (
	StatusStarted   Status = "started"
	StatusNoResults Status = "no_results"
	StatusError     Status = "error"
	StatusSuccess   Status = "success"
)

// Terminal reports whether s is one of the final states.
func (s Status) Terminal() bool {
	switch s {
	case StatusNoResults, StatusError, StatusSuccess:
		return true
	}
	return false
}

// ScrapeOutcome is the single result of one pipeline run.
//
// It is created in the started state and finished exactly once; Data is only
// populated when the run reaches the lead dossier (status success).
type ScrapeOutcome struct {
	Status     Status            `json:"status"`
	CASCode    string            `json:"cas_code"`
	Data       *ExtractionResult `json:"data"`
	Message    string            `json:"message"`
	DurationMs int64             `json:"duration_ms"`
}

// NewOutcome returns an outcome in the started state for identifier.
func NewOutcome(identifier string) *ScrapeOutcome {
	return &ScrapeOutcome{
		Status:  StatusStarted,
		CASCode: identifier,
		Message: "scrape started",
	}
}

// Finish moves the outcome to a terminal state. Later calls are ignored so
// the first terminal transition wins.
func (o *ScrapeOutcome) Finish(status Status, message string, data *ExtractionResult) bool {
	if o.Status.Terminal() || !status.Terminal() {
		return false
	}
	o.Status = status
	o.Message = message
	if status == StatusSuccess {
		o.Data = data
	} else {
		o.Data = nil
	}
	return true
}

// Fail finishes the outcome from a stage error.
func (o *ScrapeOutcome) Fail(err *ScrapeError) bool {
	return o.Finish(err.Status(), err.Message, nil)
}

// ExtractionResult records how far the dossier extraction got.
type ExtractionResult struct {
	ToxicologyAccessed bool         `json:"toxicology_accessed"`
	Summary            *SummaryData `json:"summary_data"`
	Error              string       `json:"error,omitempty"`
}

// SummaryData is the outcome of reading the key-information section from the
// document view.
type SummaryData struct {
	IframeFound      bool     `json:"iframe_found"`
	ContentExtracted bool     `json:"content_extracted"`
	KeyInfo          *KeyInfo `json:"key_info"`
	Error            string   `json:"error,omitempty"`
}

// KeyInfo is the extracted "Description of key information" fragment.
// TextContent is the section's rendered text exactly as the browser reported
// it, untrimmed; when the browser reports none it is rebuilt from
// HTMLContent. Markdown is derived from HTMLContent.
type KeyInfo struct {
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`
	Markdown    string `json:"markdown,omitempty"`
}

// NormalizeCAS trims surrounding whitespace. The identifier format is not
// validated; the registry search decides what matches.
func NormalizeCAS(s string) string {
	return strings.TrimSpace(s)
}
