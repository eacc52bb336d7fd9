// Package services defines the shared error taxonomy used across the
// identification pipeline. Errors are tagged with sentinel markers so the
// dispatcher can decide between retry-with-requeue and terminal failure
// without inspecting error strings.
package services
