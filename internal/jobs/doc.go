// Package jobs persists identification jobs in SQLite and enforces the job
// state machine: pending -> processing -> done/failed, with requeue back to
// pending below the attempt ceiling. Claim is the sole transition into
// processing and is transactional, so concurrent claims on one id cannot both
// succeed.
//
// On startup any job still marked processing is reset to pending and redone.
// That reset is unconditional and therefore only safe under the daemon's
// flock-enforced single-process deployment; a multi-instance deployment would
// need a lease or heartbeat scheme instead.
package jobs
