package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/textract-csv/internal/metrics"
	"github.com/feichai0017/textract-csv/pkg/events"
	"github.com/feichai0017/textract-csv/pkg/logger"
	"github.com/feichai0017/textract-csv/pkg/queue"
)

const maxEventBody = 1 << 20

// EventHandler receives S3 and Textract notifications and queues the work
// they trigger.
type EventHandler struct {
	queue     queue.Queue
	confirmer SubscriptionConfirmer
	metrics   *metrics.Metrics
	logger    logger.Logger
}

type EnqueueResponse struct {
	Tasks []string `json:"tasks"`
}

func NewEventHandler(q queue.Queue, confirmer SubscriptionConfirmer, m *metrics.Metrics, log logger.Logger) *EventHandler {
	return &EventHandler{
		queue:     q,
		confirmer: confirmer,
		metrics:   m,
		logger:    log.Named("events"),
	}
}

// UploadCompleted handles an S3 object-created event.
func (h *EventHandler) UploadCompleted(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok || h.handleSubscription(c, body) {
		return
	}

	refs, err := events.ParseS3Event(body)
	if err != nil {
		h.badEvent(c, err)
		return
	}

	log := logger.FromContext(c.Request.Context(), h.logger)
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, err := h.queue.EnqueueStart(c.Request.Context(), ref)
		h.recordEnqueue(queue.TaskTypeStartProcessing, err)
		if err != nil {
			log.Error("Failed to enqueue start task",
				logger.String("bucket", ref.Bucket),
				logger.String("key", ref.Key),
				logger.Error(err),
			)
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "QUEUE_UNAVAILABLE", Message: "failed to enqueue task"})
			return
		}
		ids = append(ids, id)
	}

	c.JSON(http.StatusAccepted, EnqueueResponse{Tasks: ids})
}

// AnalysisCompleted handles a Textract job-completion notification.
func (h *EventHandler) AnalysisCompleted(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok || h.handleSubscription(c, body) {
		return
	}

	n, err := events.ParseAnalysisNotification(body)
	if err != nil {
		h.badEvent(c, err)
		return
	}

	id, err := h.queue.EnqueueProcess(c.Request.Context(), n)
	h.recordEnqueue(queue.TaskTypeProcessResult, err)
	if err != nil {
		logger.FromContext(c.Request.Context(), h.logger).Error("Failed to enqueue process task",
			logger.String("jobId", n.JobID),
			logger.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "QUEUE_UNAVAILABLE", Message: "failed to enqueue task"})
		return
	}

	c.JSON(http.StatusAccepted, EnqueueResponse{Tasks: []string{id}})
}

func (h *EventHandler) recordEnqueue(taskType string, err error) {
	if h.metrics != nil {
		h.metrics.RecordEnqueue(taskType, err)
	}
}

func (h *EventHandler) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		h.badEvent(c, err)
		return nil, false
	}
	return body, true
}

// handleSubscription answers SNS control messages. It returns true when the
// request has been fully handled.
func (h *EventHandler) handleSubscription(c *gin.Context, body []byte) bool {
	env, ok := events.ParseEnvelope(body)
	if !ok {
		return false
	}

	switch env.Type {
	case events.SNSSubscriptionConfirmation:
		log := logger.FromContext(c.Request.Context(), h.logger).With(logger.String("topicArn", env.TopicArn))
		if h.confirmer == nil {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN", Message: "subscriptions are not accepted"})
			return true
		}
		if err := h.confirmer.Confirm(c.Request.Context(), env); err != nil {
			log.Warn("Subscription confirmation refused", logger.Error(err))
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN", Message: "subscription not confirmed"})
			return true
		}
		log.Info("Subscription confirmed")
		c.Status(http.StatusOK)
		return true
	case events.SNSUnsubscribeConfirmation:
		c.Status(http.StatusOK)
		return true
	}
	return false
}

func (h *EventHandler) badEvent(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context(), h.logger).Warn("Rejected event", logger.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "INVALID_INPUT", Message: err.Error()})
}
