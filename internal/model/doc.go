// Package model wraps the generative model API behind a conversation
// abstraction: callers build a message history, attach tool definitions and a
// strict output schema, and receive either tool-call requests or final
// structured text. Rate-limit retries with exponential backoff happen here so
// the orchestrator only sees terminal outcomes.
package model
