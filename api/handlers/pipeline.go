package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/textract-csv/api/middleware"
	"github.com/feichai0017/textract-csv/internal/models"
	"github.com/feichai0017/textract-csv/internal/service/pipeline"
	"github.com/feichai0017/textract-csv/pkg/logger"
)

type PipelineHandler struct {
	service PipelineService
	logger  logger.Logger
}

func NewPipelineHandler(service PipelineService, log logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		service: service,
		logger:  log.Named("handlers"),
	}
}

// CreateUploadURL returns a pre-signed PUT URL for a new statement.
func (h *PipelineHandler) CreateUploadURL(c *gin.Context) {
	var req models.UploadRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.APIKey == "" {
		req.APIKey = c.GetHeader(middleware.HeaderAPIKey)
	}

	resp, err := h.service.CreateUploadURL(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DownloadStatus reports READY with a download URL, or NOT_FOUND while the
// CSV has not been written yet.
func (h *PipelineHandler) DownloadStatus(c *gin.Context) {
	var req models.DownloadRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.APIKey == "" {
		req.APIKey = c.GetHeader(middleware.HeaderAPIKey)
	}

	resp, err := h.service.DownloadStatus(c.Request.Context(), req)
	if err != nil {
		if pipeline.KindOf(err) == pipeline.KindNotFound && resp != nil {
			c.JSON(http.StatusNotFound, resp)
			return
		}
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PipelineHandler) GetJob(c *gin.Context) {
	status, err := h.service.JobStatus(c.Request.Context(), c.GetHeader(middleware.HeaderAPIKey), c.Param("jobId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
