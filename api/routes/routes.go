package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/textract-csv/api/handlers"
	"github.com/feichai0017/textract-csv/api/middleware"
	"github.com/feichai0017/textract-csv/internal/metrics"
	"github.com/feichai0017/textract-csv/pkg/logger"
)

// SetupRoutes wires every route and the global middleware onto r.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, m *metrics.Metrics, log logger.Logger) {
	r.Use(middleware.RequestLogger(log))
	if m != nil {
		r.Use(middleware.Metrics(m))
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	r.Use(middleware.CORS())

	r.GET("/health", handlers.Health)

	v1 := r.Group("/api/v1")

	v1.POST("/uploads", h.Pipeline.CreateUploadURL)
	v1.POST("/downloads", h.Pipeline.DownloadStatus)
	v1.GET("/jobs/:jobId", h.Pipeline.GetJob)

	evts := v1.Group("/events")
	{
		evts.POST("/upload", h.Events.UploadCompleted)
		evts.POST("/analysis", h.Events.AnalysisCompleted)
	}
}
