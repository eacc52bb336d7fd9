package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusDone, StatusFailed}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// PayloadFile references one uploaded photo in object storage.
type PayloadFile struct {
	Path         string `json:"path"`
	MimeType     string `json:"mimeType"`
	OriginalName string `json:"originalName"`
}

// Payload is the caller-supplied input for one identification run.
type Payload struct {
	Files         []PayloadFile `json:"files"`
	Barcodes      string        `json:"barcodes"`
	Locale        string        `json:"locale,omitempty"`
	ModelOverride string        `json:"model,omitempty"`
}

// Empty reports whether the payload carries neither files nor barcodes.
func (p Payload) Empty() bool {
	return len(p.Files) == 0 && strings.TrimSpace(p.Barcodes) == ""
}

// Job represents a unit of asynchronous identification work.
type Job struct {
	ID            string
	Status        Status
	Attempts      int
	Payload       Payload
	ResultJSON    string
	ErrorMessage  string
	SerpTraceJSON string
	ModelUsed     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// StatsSummary aggregates job counts per lifecycle state.
type StatsSummary struct {
	Total      int
	Pending    int
	Processing int
	Done       int
	Failed     int
}
