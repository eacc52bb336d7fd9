package jobs

import (
	"context"
	"fmt"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    payload_json TEXT NOT NULL,
    result_json TEXT,
    error_message TEXT,
    serp_trace_json TEXT,
    model_used TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    started_at TEXT,
    finished_at TEXT
)`

const createStatusIndex = `CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at)`

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range []string{createJobsTable, createStatusIndex} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
