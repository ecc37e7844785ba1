package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"picturereader/internal/models"
)

// MemoryStore keeps history, jobs and usage in process memory. It is used when
// no database DSN is configured and by tests.
type MemoryStore struct {
	mu           sync.RWMutex
	recognitions []*models.Recognition
	jobs         []*models.BackgroundJob
	usage        []*models.AIUsageLog
	nextID       int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) RecordRecognition(ctx context.Context, rec *models.Recognition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.recognitions {
		if existing.RequestID == rec.RequestID {
			return fmt.Errorf("recognition %s: %w", rec.RequestID, ErrDuplicate)
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.ID = s.id()
	cp := *rec
	s.recognitions = append(s.recognitions, &cp)
	return nil
}

func (s *MemoryStore) GetRecognition(ctx context.Context, requestID uuid.UUID) (*models.Recognition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.recognitions {
		if rec.RequestID == requestID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListRecognitions returns the newest recognitions first.
func (s *MemoryStore) ListRecognitions(ctx context.Context, limit, offset int) ([]*models.Recognition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Recognition, 0, len(s.recognitions))
	for _, rec := range s.recognitions {
		cp := *rec
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (s *MemoryStore) RecordJobEnqueue(ctx context.Context, params JobRecordParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.JobID == params.JobID {
			return nil
		}
	}
	now := time.Now()
	payload := params.Payload
	if payload == nil {
		payload = []byte("{}")
	}
	s.jobs = append(s.jobs, &models.BackgroundJob{
		ID:        s.id(),
		JobID:     params.JobID,
		TaskType:  params.TaskType,
		Payload:   append([]byte(nil), payload...),
		Queue:     params.Queue,
		Status:    params.Status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return nil
}

func (s *MemoryStore) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.JobID == jobID {
			job.Status = status
			job.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("job %s not found to update status: %w", jobID, ErrNotFound)
}

func (s *MemoryStore) ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.BackgroundJob, 0, len(s.jobs))
	for i := len(s.jobs) - 1; i >= 0; i-- {
		cp := *s.jobs[i]
		out = append(out, &cp)
	}
	return page(out, limit, offset), nil
}

func (s *MemoryStore) RecordUsage(ctx context.Context, log *models.AIUsageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}
	log.ID = s.id()
	cp := *log
	s.usage = append(s.usage, &cp)
	return nil
}

func (s *MemoryStore) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AIUsageLog, 0, len(s.usage))
	for i := len(s.usage) - 1; i >= 0; i-- {
		cp := *s.usage[i]
		out = append(out, &cp)
	}
	return page(out, limit, offset), nil
}

func (s *MemoryStore) GetUsageSummary(ctx context.Context) (totalCost float64, totalInputTokens, totalOutputTokens int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.usage {
		totalCost += u.Cost
		totalInputTokens += int64(u.InputTokens)
		totalOutputTokens += int64(u.OutputTokens)
	}
	return totalCost, totalInputTokens, totalOutputTokens, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
