// Package worker holds the asynq task handlers run by `picturereader worker`.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/inputprocessor"
	"picturereader/internal/metrics"
	"picturereader/internal/models"
	"picturereader/internal/prompts"
	"picturereader/internal/recognition"
	"picturereader/internal/services"
	"picturereader/internal/store"
	"picturereader/internal/tasks"
)

// RecognitionDeps holds the dependencies of the recognition job handler.
type RecognitionDeps struct {
	Capability recognition.Capability
	Resolver   func() *prompts.Resolver
	Images     inputprocessor.Processor
	History    *services.HistoryService
	JobStore   store.JobStore // optional
	Timeout    time.Duration
}

// RegisterHandlers registers every task handler on mux.
func RegisterHandlers(mux *asynq.ServeMux, deps RecognitionDeps) {
	log.Infof("Registering %s handler", tasks.TypeRecognitionJob)
	mux.HandleFunc(tasks.TypeRecognitionJob, HandleRecognitionJob(deps))
}

// HandleRecognitionJob runs one recognition per task on a coordinator of its
// own and records the outcome. Recognition failures are recorded in history
// and not retried; only infrastructure errors (history writes) are retried.
func HandleRecognitionJob(deps RecognitionDeps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		jobID := taskJobID(ctx)
		logger := log.WithFields(log.Fields{"task_type": t.Type(), "job_id": jobID})

		payload, err := tasks.DecodeRecognitionPayload(t.Payload())
		if err != nil {
			deps.setStatus(ctx, jobID, models.JobStatusFailed)
			metrics.JobsProcessedTotal.WithLabelValues("invalid").Inc()
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		deps.setStatus(ctx, jobID, models.JobStatusRunning)

		img, err := deps.Images.Process(ctx, payload.ImagePath)
		if err != nil {
			deps.setStatus(ctx, jobID, models.JobStatusFailed)
			metrics.JobsProcessedTotal.WithLabelValues("invalid").Inc()
			return fmt.Errorf("failed to load image %s: %v: %w", payload.ImagePath, err, asynq.SkipRetry)
		}

		resolver := prompts.Default()
		if deps.Resolver != nil {
			if r := deps.Resolver(); r != nil {
				resolver = r
			}
		}
		done := make(chan recognition.Completion, 1)
		coord := recognition.NewCoordinator(deps.Capability,
			recognition.WithTimeout(deps.Timeout),
			recognition.WithResolver(resolver),
			recognition.WithCompletionHook(metrics.ObserveCompletion),
			recognition.WithCompletionHook(func(c recognition.Completion) { done <- c }),
		)
		defer coord.Close()

		lang := prompts.ParseLanguage(payload.Language)
		if _, err := coord.SubmitImage(img.Image, lang, prompts.Category(payload.Category), recognition.WithSource(img.Source)); err != nil {
			deps.setStatus(ctx, jobID, models.JobStatusFailed)
			return fmt.Errorf("failed to submit recognition of %s: %w", payload.ImagePath, err)
		}

		var completion recognition.Completion
		select {
		case completion = <-done:
		case <-ctx.Done():
			deps.setStatus(context.WithoutCancel(ctx), jobID, models.JobStatusFailed)
			return fmt.Errorf("recognition of %s interrupted: %w", payload.ImagePath, ctx.Err())
		}

		if deps.History != nil {
			if _, err := deps.History.Record(ctx, completion); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					logger.Warnf("Recognition %s already recorded", completion.Ticket.ID)
				} else {
					metrics.JobsProcessedTotal.WithLabelValues("retry").Inc()
					return fmt.Errorf("failed to record recognition for %s: %w", payload.ImagePath, err)
				}
			}
		}

		logger = logger.WithFields(log.Fields{
			"request_id": completion.Ticket.ID,
			"state":      completion.State.Kind(),
			"image":      payload.ImagePath,
		})
		if e, ok := completion.State.(recognition.Error); ok {
			deps.setStatus(ctx, jobID, models.JobStatusFailed)
			metrics.JobsProcessedTotal.WithLabelValues("failed").Inc()
			logger.Warnf("Recognition failed: %s", e.Message)
			return fmt.Errorf("recognition of %s failed: %s: %w", payload.ImagePath, e.Message, asynq.SkipRetry)
		}

		deps.setStatus(ctx, jobID, models.JobStatusCompleted)
		metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
		logger.Info("Recognition job completed")
		return nil
	}
}

var taskIDFromContext = asynq.GetTaskID

func taskJobID(ctx context.Context) uuid.UUID {
	id, ok := taskIDFromContext(ctx)
	if !ok {
		return uuid.Nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func (d RecognitionDeps) setStatus(ctx context.Context, jobID uuid.UUID, status string) {
	if d.JobStore == nil || jobID == uuid.Nil {
		return
	}
	if err := d.JobStore.UpdateJobStatus(ctx, jobID, status); err != nil {
		log.Warnf("Failed to update job %s to %s: %v", jobID, status, err)
	}
}
