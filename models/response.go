package models

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports how many browser sessions are open.
type SessionStats struct {
	MaxSessions    int   `json:"max_sessions"`
	ActiveSessions int   `json:"active_sessions"`
	TotalRuns      int64 `json:"total_runs"`
}

// JobResponse is returned for asynchronous scrape requests and job lookups.
type JobResponse struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"` // "processing" or "completed"
	CreatedAt int64          `json:"created_at"`
	Outcome   *ScrapeOutcome `json:"outcome,omitempty"`
}

// RootResponse is the banner served at GET /.
type RootResponse struct {
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorDetail for non-outcome failures such as
// validation, authentication and rate limiting.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
