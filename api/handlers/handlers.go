package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/textract-csv/internal/metrics"
	"github.com/feichai0017/textract-csv/internal/models"
	"github.com/feichai0017/textract-csv/internal/service/pipeline"
	"github.com/feichai0017/textract-csv/pkg/events"
	"github.com/feichai0017/textract-csv/pkg/logger"
	"github.com/feichai0017/textract-csv/pkg/queue"
)

// PipelineService is the request-facing half of the pipeline.
type PipelineService interface {
	CreateUploadURL(ctx context.Context, req models.UploadRequest) (*models.UploadResponse, error)
	DownloadStatus(ctx context.Context, req models.DownloadRequest) (*models.DownloadResponse, error)
	JobStatus(ctx context.Context, apiKey, jobID string) (*models.JobStatus, error)
}

// SubscriptionConfirmer answers SNS subscription handshakes.
type SubscriptionConfirmer interface {
	Confirm(ctx context.Context, env events.Envelope) error
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Handlers struct {
	Pipeline *PipelineHandler
	Events   *EventHandler
}

func NewHandlers(
	service PipelineService,
	q queue.Queue,
	confirmer SubscriptionConfirmer,
	m *metrics.Metrics,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Pipeline: NewPipelineHandler(service, log),
		Events:   NewEventHandler(q, confirmer, m, log),
	}
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "textract-csv"})
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest
	case pipeline.KindUnauthorized:
		return http.StatusUnauthorized
	case pipeline.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// writeError renders err with the status of its kind.
func writeError(c *gin.Context, log logger.Logger, err error) {
	kind := pipeline.KindOf(err)
	status := statusFor(kind)

	l := logger.FromContext(c.Request.Context(), log)
	if status >= http.StatusInternalServerError {
		l.Error("Request failed", logger.String("path", c.Request.URL.Path), logger.Error(err))
	}

	c.Error(err)
	c.JSON(status, ErrorResponse{
		Error:   string(kind),
		Message: pipeline.Message(err),
	})
}

// bindJSON decodes the request body into v. An empty body leaves v untouched.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   string(pipeline.KindInvalidInput),
			Message: "invalid JSON",
		})
		return false
	}
	return true
}
