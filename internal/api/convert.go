package api

import (
	"encoding/json"
	"time"

	"scanbay/internal/jobs"
)

// FromJob converts a stored job into its transport representation.
func FromJob(job *jobs.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:           job.ID,
		Status:       string(job.Status),
		Attempts:     job.Attempts,
		Barcodes:     job.Payload.Barcodes,
		Locale:       job.Payload.Locale,
		Model:        job.Payload.ModelOverride,
		Result:       rawJSON(job.ResultJSON),
		ErrorMessage: job.ErrorMessage,
		SerpTrace:    rawJSON(job.SerpTraceJSON),
		ModelUsed:    job.ModelUsed,
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
	}
	if job.StartedAt != nil {
		view.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		view.FinishedAt = formatTime(*job.FinishedAt)
	}
	for _, file := range job.Payload.Files {
		view.Files = append(view.Files, FileRef{
			Path:         file.Path,
			MimeType:     file.MimeType,
			OriginalName: file.OriginalName,
		})
	}
	return view
}

// FromJobs converts a job slice, preserving order.
func FromJobs(list []*jobs.Job) []JobView {
	if len(list) == 0 {
		return nil
	}
	views := make([]JobView, 0, len(list))
	for _, job := range list {
		views = append(views, FromJob(job))
	}
	return views
}

// FromStats converts store aggregates into the health payload shape.
func FromStats(stats jobs.StatsSummary) JobCounts {
	return JobCounts{
		Total:      stats.Total,
		Pending:    stats.Pending,
		Processing: stats.Processing,
		Done:       stats.Done,
		Failed:     stats.Failed,
	}
}

// rawJSON passes stored documents through when they parse, so API consumers
// see structured JSON rather than a double-encoded string. Anything invalid
// is dropped.
func rawJSON(value string) json.RawMessage {
	if value == "" {
		return nil
	}
	if !json.Valid([]byte(value)) {
		return nil
	}
	return json.RawMessage(value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
