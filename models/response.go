package models

// SolveResult is the terminal outcome of one resolution attempt.
// It is constructed exactly once per request and never mutated after.
type SolveResult struct {
	// Status is "success", "failure" (attempt budget exhausted) or
	// "error" (the browser layer failed mid-protocol).
	Status string `json:"status"`

	// Token is the widget response value. Present iff Status is "success".
	Token string `json:"token,omitempty"`

	// ElapsedSeconds is wall-clock time from just before resource
	// acquisition to the terminal transition, so it includes time spent
	// queueing for a scarce browser or page.
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// Attempts is the number of polling iterations consumed.
	Attempts int `json:"attempts"`

	// Reason explains the outcome when Status is not "success".
	Reason string `json:"reason,omitempty"`
}

// Statuses for SolveResult.Status.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusError   = "error"
)

// SolveResponse is the response for POST /api/v1/solve.
type SolveResponse struct {
	Success bool         `json:"success"`
	Result  *SolveResult `json:"result,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TaskResponse is the 202 response for GET /turnstile.
type TaskResponse struct {
	TaskID string `json:"task_id"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser pool.
type PoolStats struct {
	MaxBrowsers    int `json:"max_browsers"`
	ActiveBrowsers int `json:"active_browsers"`
	IdleBrowsers   int `json:"idle_browsers"`
}
