// Package daemon runs the long-lived scanbay process: it enforces
// single-instance execution via a lock file, recovers and starts the worker
// pool, and serves the HTTP API plus hosted photo files.
package daemon
