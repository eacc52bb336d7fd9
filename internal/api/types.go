package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileRef describes one hosted payload file.
type FileRef struct {
	Path         string `json:"path"`
	MimeType     string `json:"mimeType"`
	OriginalName string `json:"originalName,omitempty"`
}

// JobView describes a job in a transport-friendly format. Result and
// SerpTrace carry JSON documents produced by the pipeline and are passed
// through verbatim.
type JobView struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	Barcodes     string          `json:"barcodes,omitempty"`
	Locale       string          `json:"locale,omitempty"`
	Model        string          `json:"model,omitempty"`
	Files        []FileRef       `json:"files,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	SerpTrace    json.RawMessage `json:"serpTrace,omitempty"`
	ModelUsed    string          `json:"modelUsed,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
	StartedAt    string          `json:"startedAt,omitempty"`
	FinishedAt   string          `json:"finishedAt,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// RetryResponse reports how many failed jobs moved back to pending.
type RetryResponse struct {
	Retried int64 `json:"retried"`
}

// JobCounts aggregates jobs per lifecycle state.
type JobCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// HealthResponse is the daemon health payload.
type HealthResponse struct {
	Status string    `json:"status"`
	Jobs   JobCounts `json:"jobs"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
