// Package sqlite is the single-file store used by the CLI when no PostgreSQL
// server is configured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/models"
	"picturereader/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS recognitions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id    TEXT NOT NULL UNIQUE,
	language      TEXT NOT NULL,
	category      TEXT NOT NULL,
	prompt        TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	image_size    INTEGER NOT NULL DEFAULT 0,
	provider_name TEXT NOT NULL DEFAULT '',
	model_name    TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL,
	output_text   TEXT,
	error_message TEXT,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS background_jobs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id     TEXT NOT NULL UNIQUE,
	task_type  TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}',
	queue      TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_usage_logs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp     TIMESTAMP NOT NULL,
	provider_name TEXT NOT NULL,
	service_type  TEXT NOT NULL,
	model_name    TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost          REAL NOT NULL DEFAULT 0,
	request_id    TEXT
);
`

// Open opens (creating if needed) the database at path. ":memory:" is accepted.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Debugf("Opened sqlite store at %s", path)
	return &Store{db: db}, nil
}

// PathFromDSN extracts the file path from sqlite://path or file:path DSNs.
func PathFromDSN(dsn string) (string, bool) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return strings.TrimPrefix(dsn, "sqlite://"), true
	case strings.HasPrefix(dsn, "sqlite3://"):
		return strings.TrimPrefix(dsn, "sqlite3://"), true
	case strings.HasPrefix(dsn, "file:"):
		return dsn, true
	}
	return "", false
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

func (s *Store) RecordRecognition(ctx context.Context, rec *models.Recognition) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO recognitions (
			request_id, language, category, prompt, source, image_size,
			provider_name, model_name, state, output_text, error_message, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID.String(), rec.Language, rec.Category, rec.Prompt, rec.Source, rec.ImageSize,
		rec.ProviderName, rec.ModelName, rec.State, rec.OutputText, rec.ErrorMessage, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("recognition %s: %w", rec.RequestID, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert recognition: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	return err
}

const recognitionColumns = `id, request_id, language, category, prompt, source, image_size,
	provider_name, model_name, state, output_text, error_message, duration_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecognition(row scanner) (*models.Recognition, error) {
	var rec models.Recognition
	err := row.Scan(
		&rec.ID, &rec.RequestID, &rec.Language, &rec.Category, &rec.Prompt, &rec.Source, &rec.ImageSize,
		&rec.ProviderName, &rec.ModelName, &rec.State, &rec.OutputText, &rec.ErrorMessage, &rec.DurationMs, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) GetRecognition(ctx context.Context, requestID uuid.UUID) (*models.Recognition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recognitionColumns+` FROM recognitions WHERE request_id = ?`, requestID.String())
	rec, err := scanRecognition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recognition %s: %w", requestID, err)
	}
	return rec, nil
}

func (s *Store) ListRecognitions(ctx context.Context, limit, offset int) ([]*models.Recognition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recognitionColumns+`
		FROM recognitions ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query recognitions: %w", err)
	}
	defer rows.Close()

	var out []*models.Recognition
	for rows.Next() {
		rec, err := scanRecognition(rows)
		if err != nil {
			return out, fmt.Errorf("failed to scan recognition: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	payload := params.Payload
	if payload == nil {
		payload = []byte("{}")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO background_jobs (job_id, task_type, payload, queue, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`,
		params.JobID.String(), params.TaskType, string(payload), params.Queue, params.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record job enqueue event for JobID %s: %w", params.JobID, err)
	}
	return nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE background_jobs SET status = ?, updated_at = ? WHERE job_id = ?`,
		status, time.Now().UTC(), jobID.String())
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found to update status: %w", jobID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, task_type, payload, queue, status, created_at, updated_at
		FROM background_jobs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query background jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.BackgroundJob
	for rows.Next() {
		var (
			job     models.BackgroundJob
			payload string
		)
		if err := rows.Scan(&job.ID, &job.JobID, &job.TaskType, &payload, &job.Queue, &job.Status, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return jobs, fmt.Errorf("failed to scan background job row: %w", err)
		}
		job.Payload = json.RawMessage(payload)
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

func (s *Store) RecordUsage(ctx context.Context, entry *models.AIUsageLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	var requestID sql.NullString
	if entry.RequestID != nil {
		requestID = sql.NullString{String: entry.RequestID.String(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage_logs (timestamp, provider_name, service_type, model_name, input_tokens, output_tokens, cost, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.ProviderName, entry.ServiceType, entry.ModelName,
		entry.InputTokens, entry.OutputTokens, entry.Cost, requestID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ai_usage_log: %w", err)
	}
	entry.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, provider_name, service_type, model_name, input_tokens, output_tokens, cost, request_id
		FROM ai_usage_logs ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai_usage_logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AIUsageLog
	for rows.Next() {
		var (
			entry     models.AIUsageLog
			requestID sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.ProviderName, &entry.ServiceType, &entry.ModelName,
			&entry.InputTokens, &entry.OutputTokens, &entry.Cost, &requestID); err != nil {
			return logs, fmt.Errorf("failed to scan ai_usage_log: %w", err)
		}
		if requestID.Valid {
			if id, err := uuid.Parse(requestID.String); err == nil {
				entry.RequestID = &id
			}
		}
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}

func (s *Store) GetUsageSummary(ctx context.Context) (totalCost float64, totalInputTokens, totalOutputTokens int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost),0), COALESCE(SUM(input_tokens),0), COALESCE(SUM(output_tokens),0)
		FROM ai_usage_logs`).Scan(&totalCost, &totalInputTokens, &totalOutputTokens)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to summarize ai_usage_logs: %w", err)
	}
	return totalCost, totalInputTokens, totalOutputTokens, nil
}

// limitOrAll maps a non-positive limit to SQLite's "no limit".
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
