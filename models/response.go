package models

// RunAccepted is the immediate response for POST /api/v1/runs.
type RunAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Views  int    `json:"views"`
}

// ErrorResponse wraps an error for API clients.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string `json:"status"` // "healthy" or "busy"
	Uptime    string `json:"uptime"`
	ActiveRun string `json:"active_run,omitempty"`
	Version   string `json:"version"`
}
