package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"picturereader/internal/models"
	"picturereader/internal/store"
)

const recognitionColumns = `id, request_id, language, category, prompt, source, image_size,
	provider_name, model_name, state, output_text, error_message, duration_ms, created_at`

// RecordRecognition inserts a finished recognition.
func (s *StoreImpl) RecordRecognition(ctx context.Context, rec *models.Recognition) error {
	query := `
		INSERT INTO recognitions (
			request_id, language, category, prompt, source, image_size,
			provider_name, model_name, state, output_text, error_message, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		rec.RequestID,
		rec.Language,
		rec.Category,
		rec.Prompt,
		rec.Source,
		rec.ImageSize,
		rec.ProviderName,
		rec.ModelName,
		rec.State,
		rec.OutputText,
		rec.ErrorMessage,
		rec.DurationMs,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("recognition %s: %w", rec.RequestID, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert recognition: %w", err)
	}
	return nil
}

// GetRecognition returns the recognition recorded for requestID.
func (s *StoreImpl) GetRecognition(ctx context.Context, requestID uuid.UUID) (*models.Recognition, error) {
	query := `SELECT ` + recognitionColumns + ` FROM recognitions WHERE request_id = $1`
	rows, err := s.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recognition %s: %w", requestID, err)
	}
	rec, err := pgx.CollectOneRow(rows, scanRecognition)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListRecognitions returns recognitions, newest first.
func (s *StoreImpl) ListRecognitions(ctx context.Context, limit, offset int) ([]*models.Recognition, error) {
	query := `SELECT ` + recognitionColumns + `
		FROM recognitions
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query recognitions: %w", err)
	}
	return pgx.CollectRows(rows, scanRecognition)
}

func scanRecognition(row pgx.CollectableRow) (*models.Recognition, error) {
	var rec models.Recognition
	err := row.Scan(
		&rec.ID,
		&rec.RequestID,
		&rec.Language,
		&rec.Category,
		&rec.Prompt,
		&rec.Source,
		&rec.ImageSize,
		&rec.ProviderName,
		&rec.ModelName,
		&rec.State,
		&rec.OutputText,
		&rec.ErrorMessage,
		&rec.DurationMs,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recognition: %w", err)
	}
	return &rec, nil
}
