package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AIUsageLog represents a record of AI API usage for cost tracking.
type AIUsageLog struct {
	ID           int64      `db:"id" json:"id"`
	Timestamp    time.Time  `db:"timestamp" json:"timestamp"`
	ProviderName string     `db:"provider_name" json:"provider_name"`
	ServiceType  string     `db:"service_type" json:"service_type"` // e.g., "recognition", "speech"
	ModelName    string     `db:"model_name" json:"model_name"`
	InputTokens  int        `db:"input_tokens" json:"input_tokens"`
	OutputTokens int        `db:"output_tokens" json:"output_tokens"`
	Cost         float64    `db:"cost" json:"cost"`
	RequestID    *uuid.UUID `db:"request_id" json:"request_id,omitempty"` // nullable
}

// Recognition is one finished recognition request as kept in the history table.
type Recognition struct {
	ID           int64     `db:"id" json:"id"`
	RequestID    uuid.UUID `db:"request_id" json:"request_id"`
	Language     string    `db:"language" json:"language"`
	Category     string    `db:"category" json:"category"`
	Prompt       string    `db:"prompt" json:"prompt"`
	Source       string    `db:"source" json:"source"` // file path, URL or "upload"
	ImageSize    int64     `db:"image_size" json:"image_size"`
	ProviderName string    `db:"provider_name" json:"provider_name"`
	ModelName    string    `db:"model_name" json:"model_name"`
	State        string    `db:"state" json:"state"` // "success" or "error"
	OutputText   *string   `db:"output_text" json:"output_text,omitempty"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// BackgroundJob mirrors the background_jobs table schema.
type BackgroundJob struct {
	ID        int64           `db:"id" json:"id"`
	JobID     uuid.UUID       `db:"job_id" json:"job_id"` // Asynq Task ID
	TaskType  string          `db:"task_type" json:"task_type"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	Queue     string          `db:"queue" json:"queue"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
