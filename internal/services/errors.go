package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed job input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing job or resource.
	ErrNotFound = errors.New("not found")
	// ErrNotPending marks a claim attempt on a job that is not pending.
	ErrNotPending = errors.New("job not pending")
	// ErrBarcodeLimit marks a barcode list over the configured ceiling. Never retried.
	ErrBarcodeLimit = errors.New("barcode limit exceeded")
	// ErrPayloadLimit marks an upload payload over the configured byte ceiling. Never retried.
	ErrPayloadLimit = errors.New("payload limit exceeded")
	// ErrSchema marks model output that failed the bundle contract.
	ErrSchema = errors.New("schema error")
	// ErrNoToolUsage marks a run that finished without a single search-tool call.
	ErrNoToolUsage = errors.New("no tool usage")
	// ErrIterationLimit marks a conversation loop that never converged.
	ErrIterationLimit = errors.New("tool iteration limit reached")
	// ErrRateLimited marks an outbound call rejected for quota after retries.
	ErrRateLimited = errors.New("rate limited")
	// ErrNetwork marks an outbound call that failed after retries.
	ErrNetwork = errors.New("network error")
	// ErrConfiguration marks missing or invalid runtime configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrExternalTool marks an external collaborator failure.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a job-level retry can plausibly succeed.
// Input-shape and limit errors are terminal immediately; schema, iteration,
// tool-usage, and transient outbound failures are retried up to the attempt
// ceiling.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrBarcodeLimit),
		errors.Is(err, ErrPayloadLimit),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound):
		return false
	default:
		return true
	}
}

// Message extracts a human-readable failure message, stripping the marker
// prefix so job records read cleanly.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrValidation, ErrNotFound, ErrNotPending, ErrBarcodeLimit,
		ErrPayloadLimit, ErrSchema, ErrNoToolUsage, ErrIterationLimit,
		ErrRateLimited, ErrNetwork, ErrConfiguration, ErrExternalTool,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
