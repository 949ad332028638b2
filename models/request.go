package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// CASCode is the chemical identifier typed into the registry search. Required.
	CASCode string `json:"cas_code" form:"cas_code" binding:"required"`

	// MaxAge allows a cached outcome younger than this many milliseconds to be
	// returned instead of driving the browser again. Default: 0 (no cache).
	MaxAge int `json:"max_age,omitempty" form:"max_age" binding:"omitempty,min=0"`

	// WebhookURL switches the request to asynchronous mode: a job id is
	// returned immediately and the outcome is POSTed here when done.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs webhook deliveries with HMAC-SHA256 when set.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	r.CASCode = NormalizeCAS(r.CASCode)
	if r.MaxAge < 0 {
		r.MaxAge = 0
	}
}
