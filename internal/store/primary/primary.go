package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/store"
)

// StoreImpl implements store.Store using PostgreSQL.
type StoreImpl struct {
	db *pgxpool.Pool
}

var _ store.Store = (*StoreImpl)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS recognitions (
	id            BIGSERIAL PRIMARY KEY,
	request_id    UUID NOT NULL UNIQUE,
	language      TEXT NOT NULL,
	category      TEXT NOT NULL,
	prompt        TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	image_size    BIGINT NOT NULL DEFAULT 0,
	provider_name TEXT NOT NULL DEFAULT '',
	model_name    TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL,
	output_text   TEXT,
	error_message TEXT,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS background_jobs (
	id         BIGSERIAL PRIMARY KEY,
	job_id     UUID NOT NULL UNIQUE,
	task_type  TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}',
	queue      TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ai_usage_logs (
	id            BIGSERIAL PRIMARY KEY,
	timestamp     TIMESTAMPTZ NOT NULL DEFAULT now(),
	provider_name TEXT NOT NULL,
	service_type  TEXT NOT NULL,
	model_name    TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
	request_id    UUID
);
`

// NewPrimaryStore connects to PostgreSQL and makes sure the schema exists.
func NewPrimaryStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &StoreImpl{db: dbpool}
	if err := s.Migrate(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	log.Infof("Connected to PostgreSQL %s@%s/%s", poolConfig.ConnConfig.User, poolConfig.ConnConfig.Host, poolConfig.ConnConfig.Database)
	return s, nil
}

// Migrate creates the tables when they do not exist.
func (s *StoreImpl) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection pool.
func (s *StoreImpl) Close() error {
	s.db.Close()
	return nil
}
