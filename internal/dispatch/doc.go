// Package dispatch runs the worker pool that drains the job queue. Workers
// claim jobs transactionally, resolve payload files from object storage, run
// the enrichment orchestrator, and record terminal transitions. Retryable
// failures are requeued until the attempt budget is spent.
package dispatch
