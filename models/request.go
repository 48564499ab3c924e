package models

// ViewSpec is one catalog view in an API request. Exactly one of URL and
// Document must be set.
type ViewSpec struct {
	Platform string `json:"platform" binding:"required"`
	URL      string `json:"url,omitempty" binding:"omitempty,url"`
	Document string `json:"document,omitempty"`
}

// RunRequest is the payload for POST /api/v1/runs. An empty Views list
// runs the configured views.
type RunRequest struct {
	Views []ViewSpec `json:"views,omitempty" binding:"omitempty,dive"`
}
