package serp

import "encoding/json"

// TraceEntry records one search-tool invocation: what was asked, what came
// back (summarized), and any failure. Entries are append-only for the
// lifetime of a run.
type TraceEntry struct {
	Engine  Engine            `json:"engine"`
	Query   string            `json:"query"`
	Summary []string          `json:"summary"`
	Params  map[string]string `json:"params,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Trace is the ordered log of every tool invocation during one run.
type Trace []TraceEntry

// Append records an entry and returns the extended trace.
func (t Trace) Append(entry TraceEntry) Trace {
	return append(t, entry)
}

// MarshalJSONString renders the trace for storage on the job row. An empty
// trace renders as an empty array, not null.
func (t Trace) MarshalJSONString() (string, error) {
	if t == nil {
		t = Trace{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
