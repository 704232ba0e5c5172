package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/textract-csv/internal/models"
	"github.com/feichai0017/textract-csv/internal/service/pipeline"
	"github.com/feichai0017/textract-csv/pkg/events"
	"github.com/feichai0017/textract-csv/pkg/logger"
	"github.com/feichai0017/textract-csv/pkg/queue"
)

// PipelineService is what the worker runs for each task type.
type PipelineService interface {
	StartProcessing(ctx context.Context, ref events.ObjectRef) (string, error)
	ProcessResult(ctx context.Context, n events.AnalysisNotification) (*models.ProcessResult, error)
}

type PipelineWorker struct {
	BaseWorker
	service PipelineService
}

func NewPipelineWorker(cfg *Config, service PipelineService, log logger.Logger) *PipelineWorker {
	log = log.Named("worker")
	server := asynq.NewServer(
		cfg.Redis,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(n+1) * 30 * time.Second
				if delay > 10*time.Minute {
					delay = 10 * time.Minute
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error("Task failed",
					logger.String("type", task.Type()),
					logger.Int("retried", retried),
					logger.Int("maxRetry", maxRetry),
					logger.Error(err),
				)
			}),
		},
	)

	w := &PipelineWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		service: service,
	}

	w.registerHandlers()
	return w
}

func (w *PipelineWorker) registerHandlers() {
	w.mux.Use(w.logTask)
	w.mux.HandleFunc(queue.TaskTypeStartProcessing, w.handleStartProcessing)
	w.mux.HandleFunc(queue.TaskTypeProcessResult, w.handleProcessResult)
}

func (w *PipelineWorker) logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		if id, ok := asynq.GetTaskID(ctx); ok {
			ctx = logger.ContextWithTaskID(ctx, id)
		}
		err := next.ProcessTask(ctx, t)
		logger.FromContext(ctx, w.logger).Info("Task processed",
			logger.String("type", t.Type()),
			logger.Duration("elapsed", time.Since(start)),
			logger.Bool("ok", err == nil),
		)
		return err
	})
}

func (w *PipelineWorker) handleStartProcessing(ctx context.Context, t *asynq.Task) error {
	var payload queue.StartPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logger.FromContext(ctx, w.logger).Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w: %w", err, asynq.SkipRetry)
	}

	jobID, err := w.service.StartProcessing(ctx, events.ObjectRef{Bucket: payload.Bucket, Key: payload.Key})
	if err != nil {
		return classify(err)
	}

	writeResult(t, map[string]string{"jobId": jobID})
	return nil
}

func (w *PipelineWorker) handleProcessResult(ctx context.Context, t *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logger.FromContext(ctx, w.logger).Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w: %w", err, asynq.SkipRetry)
	}

	ctx = logger.ContextWithJobID(ctx, payload.Notification.JobID)
	result, err := w.service.ProcessResult(ctx, payload.Notification)
	if err != nil {
		return classify(err)
	}

	writeResult(t, result)
	return nil
}

// classify stops asynq from retrying failures that redelivery cannot fix.
func classify(err error) error {
	if pipeline.KindOf(err) == pipeline.KindUpstream {
		return err
	}
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// writeResult stores v as the task result when the task runs under a server.
func writeResult(t *asynq.Task, v interface{}) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		rw.Write(data)
	}
}

// Start runs the asynq server until ctx is cancelled.
func (w *PipelineWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	w.logger.Info("Worker started")

	<-ctx.Done()
	w.logger.Info("Worker stopping")
	return w.Stop()
}
