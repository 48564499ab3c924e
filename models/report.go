package models

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial" // output written, but at least one view failed
	RunStatusFailed    = "failed"  // no output file was produced
)

// ViewReport summarises one catalog view's pass through the pipeline.
type ViewReport struct {
	Platform string `json:"platform"`
	Source   string `json:"source"`

	// Steps is the number of load-more activations performed.
	Steps int `json:"steps"`

	// Extracted is the number of records the extractor produced.
	Extracted int `json:"extracted"`

	// Added and Duplicates split Extracted by the merge outcome.
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`

	// Skipped counts cards dropped for missing navigational data.
	Skipped int `json:"skipped"`

	// PriceAnomalies counts non-empty price texts that did not parse.
	PriceAnomalies int `json:"price_anomalies"`

	DurationMs int64 `json:"duration_ms"`

	// Error is set when the view failed at any stage.
	Error *ErrorDetail `json:"error,omitempty"`
}

// Failed reports whether the view hit an error.
func (v ViewReport) Failed() bool { return v.Error != nil }

// RunReport is the outcome of a full run over all configured views.
type RunReport struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	OutputFile string       `json:"output_file,omitempty"`
	Total      int          `json:"total"`
	Views      []ViewReport `json:"views"`
	StartedAt  int64        `json:"started_at"`
	FinishedAt int64        `json:"finished_at,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`

	// Records is the merged result set; served separately by the API.
	Records []Record `json:"-"`
}
