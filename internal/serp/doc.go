// Package serp adapts the model's search-tool contract onto the external
// search-aggregation API. It owns the engine enumeration, the HTTP client,
// the reduction of raw engine payloads into compact ranked summaries, and the
// append-only trace recorded for every tool invocation during a run.
package serp
