package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/models"
	"picturereader/internal/tasks"
)

// taskEnqueuer is the part of *asynq.Client used here.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqJobClient enqueues tasks and records them to the JobStore.
type AsynqJobClient struct {
	client   taskEnqueuer
	jobStore JobStore
	queue    string
	maxRetry int
}

var _ JobClient = (*AsynqJobClient)(nil)

func NewAsynqJobClient(redis asynq.RedisClientOpt, queue string, js JobStore) (*AsynqJobClient, error) {
	if redis.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty for AsynqJobClient")
	}
	return newJobClient(asynq.NewClient(redis), queue, js), nil
}

func newJobClient(client taskEnqueuer, queue string, js JobStore) *AsynqJobClient {
	if queue == "" {
		queue = "default"
	}
	return &AsynqJobClient{client: client, jobStore: js, queue: queue, maxRetry: 3}
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Enqueue enqueues a task under a fresh UUID task ID and records the event.
// A failure to record does not fail the enqueue.
func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	jobID := uuid.New()
	opts = append([]asynq.Option{asynq.TaskID(jobID.String()), asynq.Queue(jc.queue), asynq.MaxRetry(jc.maxRetry)}, opts...)

	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task %s: %w", task.Type(), err)
	}
	log.WithFields(log.Fields{"task_id": info.ID, "type": task.Type(), "queue": info.Queue}).Debug("Enqueued task")

	if jc.jobStore != nil {
		params := JobRecordParams{
			JobID:    jobID,
			TaskType: task.Type(),
			Payload:  task.Payload(),
			Queue:    info.Queue,
			Status:   models.JobStatusEnqueued,
		}
		if err := jc.jobStore.RecordJobEnqueue(ctx, params); err != nil {
			log.Errorf("Failed to record job enqueue event for task %s: %v", info.ID, err)
		}
	}
	return info, nil
}

func (jc *AsynqJobClient) EnqueueRecognitionJob(ctx context.Context, payload tasks.RecognitionPayload) (*asynq.TaskInfo, error) {
	data, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	info, err := jc.Enqueue(ctx, asynq.NewTask(tasks.TypeRecognitionJob, data))
	if err != nil {
		return nil, fmt.Errorf("enqueue recognition job for %s: %w", payload.ImagePath, err)
	}
	return info, nil
}
