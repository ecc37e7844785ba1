package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"picturereader/internal/models"
	"picturereader/internal/tasks"
)

// --- Provider Status (defined here so services and apihandlers share it) ---

type ProviderStatus int

const (
	ProviderStatusUnknown  ProviderStatus = iota // Default zero value
	ProviderStatusActive                         // Provider is operational
	ProviderStatusInactive                       // Provider is temporarily unavailable (e.g., network, rate limit)
	ProviderStatusDisabled                       // Provider is not configured or explicitly disabled
)

func (s ProviderStatus) String() string {
	switch s {
	case ProviderStatusActive:
		return "active"
	case ProviderStatusInactive:
		return "inactive"
	case ProviderStatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// --- Job Client ---

type JobClient interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueRecognitionJob(ctx context.Context, payload tasks.RecognitionPayload) (*asynq.TaskInfo, error)
	Close() error
}

// --- History Store ---

type HistoryStore interface {
	RecordRecognition(ctx context.Context, rec *models.Recognition) error
	GetRecognition(ctx context.Context, requestID uuid.UUID) (*models.Recognition, error)
	ListRecognitions(ctx context.Context, limit, offset int) ([]*models.Recognition, error)
}

// --- Job Store ---

// JobRecordParams holds parameters for recording a job event.
type JobRecordParams struct {
	JobID    uuid.UUID
	TaskType string
	Payload  []byte
	Queue    string
	Status   string
}

type JobStore interface {
	RecordJobEnqueue(ctx context.Context, params JobRecordParams) error
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error
	ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error)
}

// --- Cost Tracking Store ---

type CostTrackingStore interface {
	RecordUsage(ctx context.Context, log *models.AIUsageLog) error
	ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error)
	GetUsageSummary(ctx context.Context) (totalCost float64, totalInputTokens, totalOutputTokens int64, err error)
}

// Store is everything the application persists.
type Store interface {
	HistoryStore
	JobStore
	CostTrackingStore
	Ping(ctx context.Context) error
	Close() error
}
