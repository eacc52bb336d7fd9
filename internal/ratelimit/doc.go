// Package ratelimit provides the bounded-concurrency gate shared by
// quota-limited outbound calls: a semaphore with a FIFO waiter queue plus a
// retry helper applying exponential backoff with jitter. Implemented once and
// parameterized by max concurrency and backoff policy instead of duplicating
// the pattern per collaborator.
package ratelimit
