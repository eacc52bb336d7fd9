// Package api holds the transport-facing job representations and the
// submission service shared by the HTTP server and the CLI. Handlers stay
// thin; validation, object hosting, and queue handoff live here.
package api
