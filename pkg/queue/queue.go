// pkg/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/textract-csv/config"
	"github.com/feichai0017/textract-csv/pkg/events"
)

// Task types
const (
	TaskTypeStartProcessing = "pipeline:start"
	TaskTypeProcessResult   = "pipeline:process"
)

// Queue names, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the weighting handed to the asynq server.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// Queue hands trigger events to the worker.
type Queue interface {
	EnqueueStart(ctx context.Context, ref events.ObjectRef) (string, error)
	EnqueueProcess(ctx context.Context, n events.AnalysisNotification) (string, error)
	Close() error
}

// Enqueuer is the part of asynq.Client the queue uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// StartPayload is the body of a pipeline:start task.
type StartPayload struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// ProcessPayload is the body of a pipeline:process task.
type ProcessPayload struct {
	Notification events.AnalysisNotification `json:"notification"`
}

type QueueConfig struct {
	MaxRetries     int
	ProcessTimeout time.Duration
	Retention      time.Duration
}

type AsynqQueue struct {
	client Enqueuer
	config QueueConfig
}

// RedisOpt builds the asynq connection options from the redis section.
func RedisOpt(cfg config.Redis) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewAsynqQueue connects to the redis instance named in cfg.
func NewAsynqQueue(cfg *config.Config) *AsynqQueue {
	return New(asynq.NewClient(RedisOpt(cfg.Redis)), QueueConfig{
		MaxRetries:     cfg.Worker.MaxRetry,
		ProcessTimeout: cfg.Worker.Timeout.Duration,
		Retention:      24 * time.Hour,
	})
}

func New(client Enqueuer, cfg QueueConfig) *AsynqQueue {
	return &AsynqQueue{client: client, config: cfg}
}

// EnqueueStart queues analysis of an uploaded object. Redelivered upload
// events for the same object collapse onto one task.
func (q *AsynqQueue) EnqueueStart(ctx context.Context, ref events.ObjectRef) (string, error) {
	payload, err := json.Marshal(StartPayload{Bucket: ref.Bucket, Key: ref.Key})
	if err != nil {
		return "", fmt.Errorf("failed to marshal task: %w", err)
	}
	taskID := fmt.Sprintf("start:%s/%s", ref.Bucket, ref.Key)
	return q.enqueue(ctx, asynq.NewTask(TaskTypeStartProcessing, payload), taskID, QueueDefault)
}

// EnqueueProcess queues CSV generation for a finished analysis job.
func (q *AsynqQueue) EnqueueProcess(ctx context.Context, n events.AnalysisNotification) (string, error) {
	payload, err := json.Marshal(ProcessPayload{Notification: n})
	if err != nil {
		return "", fmt.Errorf("failed to marshal task: %w", err)
	}
	taskID := "process:" + n.JobID
	return q.enqueue(ctx, asynq.NewTask(TaskTypeProcessResult, payload), taskID, QueueCritical)
}

func (q *AsynqQueue) enqueue(ctx context.Context, task *asynq.Task, taskID, queueName string) (string, error) {
	opts := []asynq.Option{
		asynq.TaskID(taskID),
		asynq.Queue(queueName),
	}
	if q.config.MaxRetries > 0 {
		opts = append(opts, asynq.MaxRetry(q.config.MaxRetries))
	}
	if q.config.ProcessTimeout > 0 {
		opts = append(opts, asynq.Timeout(q.config.ProcessTimeout))
	}
	if q.config.Retention > 0 {
		opts = append(opts, asynq.Retention(q.config.Retention))
	}

	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return taskID, nil
		}
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return info.ID, nil
}

func (q *AsynqQueue) Close() error {
	return q.client.Close()
}
