package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/models"
	"picturereader/internal/recognition"
	"picturereader/internal/store"
)

// HistoryService records finished recognitions and reads them back.
type HistoryService struct {
	store    store.HistoryStore
	provider string
	model    string
}

func NewHistoryService(s store.HistoryStore, r Recognizer) *HistoryService {
	svc := &HistoryService{store: s}
	if r != nil {
		svc.provider, svc.model = r.Name(), r.ModelName()
	}
	return svc
}

// Record stores a completion. Only terminal states can be recorded.
func (s *HistoryService) Record(ctx context.Context, c recognition.Completion) (*models.Recognition, error) {
	rec := &models.Recognition{
		RequestID:    c.Ticket.ID,
		Language:     string(c.Request.Language),
		Category:     string(c.Request.Category),
		Prompt:       c.Request.Prompt,
		Source:       c.Request.Source,
		ImageSize:    int64(len(c.Request.Image)),
		ProviderName: s.provider,
		ModelName:    s.model,
		DurationMs:   c.Duration.Milliseconds(),
	}
	switch st := c.State.(type) {
	case recognition.Success:
		text := st.OutputText
		rec.State = models.RecognitionStateSuccess
		rec.OutputText = &text
	case recognition.Error:
		msg := st.Message
		rec.State = models.RecognitionStateError
		rec.ErrorMessage = &msg
	default:
		return nil, fmt.Errorf("cannot record %s state: %w", c.State.Kind(), models.ErrValidation)
	}

	if err := s.store.RecordRecognition(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record recognition %s: %w", rec.RequestID, err)
	}
	return rec, nil
}

// Hook returns a completion hook that records every applied completion.
func (s *HistoryService) Hook() func(recognition.Completion) {
	return func(c recognition.Completion) {
		if !c.Applied {
			return
		}
		if _, err := s.Record(context.Background(), c); err != nil {
			log.Errorf("History: %v", err)
		}
	}
}

func (s *HistoryService) List(ctx context.Context, limit, offset int) ([]*models.Recognition, error) {
	recs, err := s.store.ListRecognitions(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list recognitions from store: %w", err)
	}
	return recs, nil
}

func (s *HistoryService) Get(ctx context.Context, requestID uuid.UUID) (*models.Recognition, error) {
	rec, err := s.store.GetRecognition(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recognition %s: %w", requestID, err)
	}
	return rec, nil
}
