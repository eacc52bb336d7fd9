package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scanbay/internal/config"
	"scanbay/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenAt(filepath.Join(cfg.Paths.DataDir, "jobs.db"))
}

// OpenAt opens a job store at an explicit database path.
func OpenAt(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a new pending job. When id is empty a UUID is generated.
// The payload must carry at least one file or a non-empty barcode string.
func (s *Store) Create(ctx context.Context, payload Payload, id string) (*Job, error) {
	if payload.Empty() {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create", "payload requires files or barcodes", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(
			ctx,
			`INSERT INTO jobs (id, status, attempts, payload_json, created_at, updated_at)
             VALUES (?, ?, 0, ?, ?, ?)`,
			id,
			StatusPending,
			string(payloadJSON),
			timestamp,
			timestamp,
		)
		return execErr
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, services.Wrap(services.ErrValidation, "jobs", "create", fmt.Sprintf("job %s already exists", id), nil)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Claim transitions a pending job to processing and increments its attempt
// counter. Exactly one of N concurrent claims for the same id succeeds; the
// rest observe ErrNotPending. A missing job yields ErrNotFound.
func (s *Store) Claim(ctx context.Context, id string) (*Job, error) {
	var claimed *Job
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var status string
		row := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id)
		if err := row.Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "jobs", "claim", fmt.Sprintf("job %s not found", id), nil)
			}
			return fmt.Errorf("read job status: %w", err)
		}
		if Status(status) != StatusPending {
			return services.Wrap(services.ErrNotPending, "jobs", "claim", fmt.Sprintf("job %s is %s", id, status), nil)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(
			ctx,
			`UPDATE jobs
             SET status = ?, attempts = attempts + 1, updated_at = ?,
                 started_at = COALESCE(started_at, ?)
             WHERE id = ? AND status = ?`,
			StatusProcessing, now, now, id, StatusPending,
		)
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			return services.Wrap(services.ErrNotPending, "jobs", "claim", fmt.Sprintf("job %s claimed concurrently", id), nil)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	claimed, err = s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "claim", fmt.Sprintf("job %s disappeared after claim", id), nil)
	}
	return claimed, nil
}

// MarkDone records a successful terminal transition.
func (s *Store) MarkDone(ctx context.Context, id, resultJSON, traceJSON, modelUsed string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, result_json = ?, serp_trace_json = ?, model_used = ?,
             error_message = NULL, updated_at = ?, finished_at = ?
         WHERE id = ?`,
		StatusDone, nullableString(resultJSON), nullableString(traceJSON), nullableString(modelUsed), now, now, id,
	)
}

// MarkFailed records a failed terminal transition with a human-readable message.
func (s *Store) MarkFailed(ctx context.Context, id, message, traceJSON, modelUsed string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, serp_trace_json = ?, model_used = ?,
             updated_at = ?, finished_at = ?
         WHERE id = ?`,
		StatusFailed, nullableString(message), nullableString(traceJSON), nullableString(modelUsed), now, now, id,
	)
}

// Requeue resets a processing job to pending for another attempt, keeping the
// last error for diagnostics.
func (s *Store) Requeue(ctx context.Context, id, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusPending, nullableString(message), now, id,
	)
}

// List returns jobs filtered by status set (or all jobs when none given),
// ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// ResetStuckProcessing resets processing jobs back to pending. Used only at
// process startup; in-flight work is assumed lost.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, updated_at = ? WHERE status = ?`,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusProcessing,
		)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return affected, nil
}

// RetryFailed moves failed jobs back to pending for reprocessing, clearing the
// attempt counter so the retry budget starts fresh.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var (
		query string
		args  []any
	)
	if len(ids) == 0 {
		query = `UPDATE jobs SET status = ?, attempts = 0, error_message = NULL, finished_at = NULL, updated_at = ? WHERE status = ?`
		args = []any{StatusPending, now, StatusFailed}
	} else {
		placeholders := makePlaceholders(len(ids))
		query = `UPDATE jobs SET status = ?, attempts = 0, error_message = NULL, finished_at = NULL, updated_at = ?
             WHERE status = '` + string(StatusFailed) + `' AND id IN (` + placeholders + `)`
		args = append(args, StatusPending, now)
		for _, id := range ids {
			args = append(args, id)
		}
	}

	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return affected, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (StatsSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	summary := StatsSummary{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return StatsSummary{}, err
		}
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending += count
		case StatusProcessing:
			summary.Processing += count
		case StatusDone:
			summary.Done += count
		case StatusFailed:
			summary.Failed += count
		}
	}
	return summary, rows.Err()
}

const jobColumns = "id, status, attempts, payload_json, result_json, error_message, serp_trace_json, model_used, created_at, updated_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          string
		statusStr   string
		attempts    int
		payloadRaw  string
		resultRaw   sql.NullString
		errMessage  sql.NullString
		traceRaw    sql.NullString
		modelUsed   sql.NullString
		createdRaw  string
		updatedRaw  string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&attempts,
		&payloadRaw,
		&resultRaw,
		&errMessage,
		&traceRaw,
		&modelUsed,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:            id,
		Status:        Status(statusStr),
		Attempts:      attempts,
		ResultJSON:    resultRaw.String,
		ErrorMessage:  errMessage.String,
		SerpTraceJSON: traceRaw.String,
		ModelUsed:     modelUsed.String,
	}
	if err := json.Unmarshal([]byte(payloadRaw), &job.Payload); err != nil {
		return nil, fmt.Errorf("decode payload for job %s: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
