// Package pipeline implements the four event and request handlers that take
// a PDF from an upload URL to a downloadable CSV of its tables.
package pipeline

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/textract-csv/config"
	"github.com/feichai0017/textract-csv/internal/metrics"
	"github.com/feichai0017/textract-csv/internal/models"
	"github.com/feichai0017/textract-csv/internal/preflight"
	"github.com/feichai0017/textract-csv/internal/table"
	"github.com/feichai0017/textract-csv/internal/textract"
	"github.com/feichai0017/textract-csv/internal/utils/validator"
	"github.com/feichai0017/textract-csv/pkg/converters"
	"github.com/feichai0017/textract-csv/pkg/events"
	"github.com/feichai0017/textract-csv/pkg/logger"
	"github.com/feichai0017/textract-csv/pkg/storage"
)

const (
	DefaultFilename    = "statement.pdf"
	DefaultContentType = "application/pdf"
)

const (
	opCreateUploadURL = "create_upload_url"
	opStartProcessing = "start_processing"
	opProcessResult   = "process_result"
	opDownloadStatus  = "download_status"
	opJobStatus       = "job_status"
)

// Analyzer starts analysis jobs and serves their result pages.
type Analyzer interface {
	StartAnalysis(ctx context.Context, bucket, key string) (string, error)
	textract.ResultFetcher
}

// JobTracker persists job lifecycle records. Implementations return
// models.ErrJobNotFound for unknown ids.
type JobTracker interface {
	SaveJobStatus(ctx context.Context, status *models.JobStatus) error
	GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
}

// Preflighter inspects a document before analysis starts.
type Preflighter interface {
	Check(ctx context.Context, r io.Reader) (preflight.Info, error)
}

type Service struct {
	config    config.Pipeline
	storage   storage.Storage
	analyzer  Analyzer
	jobs      JobTracker
	preflight Preflighter
	validator *validator.UploadValidator
	converter converters.DocumentConverter
	metrics   *metrics.Metrics
	logger    logger.Logger

	now   func() time.Time
	newID func() string
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the random id used in upload keys.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithPreflight enables the local PDF check in StartProcessing.
func WithPreflight(p Preflighter) Option {
	return func(s *Service) { s.preflight = p }
}

func WithValidator(v *validator.UploadValidator) Option {
	return func(s *Service) { s.validator = v }
}

func WithConverter(c converters.DocumentConverter) Option {
	return func(s *Service) { s.converter = c }
}

func NewService(
	cfg config.Pipeline,
	store storage.Storage,
	analyzer Analyzer,
	jobs JobTracker,
	m *metrics.Metrics,
	log logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		config:    cfg,
		storage:   store,
		analyzer:  analyzer,
		jobs:      jobs,
		validator: validator.NewUploadValidator(nil),
		converter: converters.NewCSVConverter(),
		metrics:   m,
		logger:    log.Named("pipeline"),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUploadURL issues a pre-signed PUT URL for a new upload key.
func (s *Service) CreateUploadURL(ctx context.Context, req models.UploadRequest) (resp *models.UploadResponse, err error) {
	defer s.observe(opCreateUploadURL, s.now(), &err)
	log := logger.FromContext(ctx, s.logger)

	if !s.authorized(req.APIKey) {
		log.Warn("Upload URL request rejected: invalid api key")
		return nil, unauthorized(opCreateUploadURL)
	}

	filename := req.Filename
	if filename == "" {
		filename = DefaultFilename
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	if result := s.validator.Validate(filename, contentType); !result.IsValid {
		log.Warn("Upload URL request rejected: invalid input",
			logger.String("filename", filename),
			logger.String("contentType", contentType),
			logger.String("reason", result.Error()),
		)
		return nil, invalidInput(opCreateUploadURL, result.Error())
	}

	key := s.UploadKey(filename)
	url, err := s.storage.PresignUpload(ctx, s.config.Bucket, key, contentType, s.config.UploadURLExpiry.Duration)
	if err != nil {
		log.Error("Failed to presign upload URL",
			logger.String("bucket", s.config.Bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, upstream(opCreateUploadURL, "failed to generate upload url", err)
	}

	log.Info("Upload URL issued",
		logger.String("bucket", s.config.Bucket),
		logger.String("key", key),
	)
	return &models.UploadResponse{
		UploadURL: url,
		S3Key:     key,
		Bucket:    s.config.Bucket,
	}, nil
}

// UploadKey builds {uploadPrefix}/{id}-{YYYY-MM-DD}-{filename}.
func (s *Service) UploadKey(filename string) string {
	name := fmt.Sprintf("%s-%s-%s", s.newID(), s.now().UTC().Format(time.DateOnly), filename)
	return joinKey(s.config.UploadPrefix, name)
}

// StartProcessing starts table analysis for an uploaded object.
func (s *Service) StartProcessing(ctx context.Context, ref events.ObjectRef) (jobID string, err error) {
	defer s.observe(opStartProcessing, s.now(), &err)
	log := logger.FromContext(ctx, s.logger).With(
		logger.String("bucket", ref.Bucket),
		logger.String("key", ref.Key),
	)

	if ref.Bucket == "" || ref.Key == "" {
		return "", invalidInput(opStartProcessing, "missing bucket or key")
	}
	if prefix := strings.Trim(s.config.UploadPrefix, "/"); prefix != "" && !strings.HasPrefix(ref.Key, prefix+"/") {
		log.Warn("Ignoring object outside the upload prefix")
		return "", invalidInput(opStartProcessing, "object is outside the upload prefix")
	}

	if s.preflight != nil {
		if err := s.checkDocument(ctx, ref); err != nil {
			log.Warn("Preflight check failed", logger.Error(err))
			return "", err
		}
	}

	jobID, err = s.analyzer.StartAnalysis(ctx, ref.Bucket, ref.Key)
	if err != nil {
		log.Error("Failed to start analysis", logger.Error(err))
		return "", upstream(opStartProcessing, "failed to start analysis", err)
	}

	s.saveJob(ctx, &models.JobStatus{
		JobID:     jobID,
		State:     models.JobStarted,
		Bucket:    ref.Bucket,
		SourceKey: ref.Key,
		StartedAt: s.now().UTC(),
	})

	log.Info("Analysis started", logger.String("jobId", jobID))
	return jobID, nil
}

func (s *Service) checkDocument(ctx context.Context, ref events.ObjectRef) error {
	body, err := s.storage.Get(ctx, ref.Bucket, ref.Key)
	if err != nil {
		if storage.IsNotFound(err) {
			return notFound(opStartProcessing, "uploaded object not found", err)
		}
		return upstream(opStartProcessing, "failed to read uploaded object", err)
	}
	defer body.Close()

	if _, err := s.preflight.Check(ctx, body); err != nil {
		return &Error{Kind: KindInvalidInput, Op: opStartProcessing, Msg: "document is not a readable pdf", Err: err}
	}
	return nil
}

// ProcessResult turns a finished analysis job into a CSV next to its source.
// Nothing is written unless every result page was fetched.
func (s *Service) ProcessResult(ctx context.Context, n events.AnalysisNotification) (result *models.ProcessResult, err error) {
	started := s.now()
	defer s.observe(opProcessResult, started, &err)
	log := logger.FromContext(ctx, s.logger).With(
		logger.String("jobId", n.JobID),
		logger.String("bucket", n.Bucket()),
		logger.String("key", n.Key()),
	)

	if n.JobID == "" || n.Bucket() == "" || n.Key() == "" {
		return nil, invalidInput(opProcessResult, "missing job id, bucket or key")
	}

	job := s.loadJob(ctx, n)

	if !n.Succeeded() {
		log.Warn("Analysis job did not succeed", logger.String("status", n.Status))
		job.State = models.JobFailed
		job.Error = fmt.Sprintf("analysis finished with status %s", n.Status)
		job.CompletedAt = s.now().UTC()
		s.saveJob(ctx, job)
		return nil, invalidInput(opProcessResult, job.Error)
	}

	paginator := textract.NewBlockPaginator(s.analyzer, n.JobID)
	blocks, err := textract.FetchAll(ctx, paginator)
	if err != nil {
		log.Error("Failed to fetch analysis results",
			logger.Int("pagesFetched", paginator.Pages()),
			logger.Error(err),
		)
		return nil, upstream(opProcessResult, "failed to fetch analysis results", err)
	}

	doc := table.Reconstruct(blocks)
	data, err := s.converter.Convert(doc)
	if err != nil {
		return nil, upstream(opProcessResult, "failed to encode csv", err)
	}

	csvKey := s.CSVKey(n.Key())
	size := len(data)
	if err := s.storage.Put(ctx, n.Bucket(), csvKey, bytes.NewReader(data), s.converter.ContentType()); err != nil {
		log.Error("Failed to write csv",
			logger.String("csvKey", csvKey),
			logger.Error(err),
		)
		return nil, upstream(opProcessResult, "failed to write csv", err)
	}

	if s.metrics != nil {
		s.metrics.RecordResult(paginator.Pages(), len(blocks), doc.PageCount(), doc.CellCount(), size)
	}

	job.State = models.JobCompleted
	job.CSVKey = csvKey
	job.Pages = doc.PageCount()
	job.Cells = doc.CellCount()
	job.Error = ""
	job.CompletedAt = s.now().UTC()
	s.saveJob(ctx, job)

	log.Info("CSV written",
		logger.String("csvKey", csvKey),
		logger.Int("blocks", len(blocks)),
		logger.Int("pages", doc.PageCount()),
		logger.Int("cells", doc.CellCount()),
		logger.Duration("elapsed", s.now().Sub(started)),
	)
	return &models.ProcessResult{
		JobID:  n.JobID,
		Bucket: n.Bucket(),
		Key:    csvKey,
		Pages:  doc.PageCount(),
		Cells:  doc.CellCount(),
		Bytes:  size,
	}, nil
}

// CSVKey maps a source key to {processedPrefix}/{name}.csv, replacing a
// trailing .pdf and keeping the rest of the file name.
func (s *Service) CSVKey(sourceKey string) string {
	name := path.Base(sourceKey)
	if strings.EqualFold(path.Ext(name), ".pdf") {
		name = strings.TrimSuffix(name, path.Ext(name))
	}
	return joinKey(s.config.ProcessedPrefix, name+".csv")
}

// DownloadStatus reports whether a processed CSV exists and, if so, returns
// a short-lived download URL for it.
func (s *Service) DownloadStatus(ctx context.Context, req models.DownloadRequest) (resp *models.DownloadResponse, err error) {
	defer s.observe(opDownloadStatus, s.now(), &err)
	log := logger.FromContext(ctx, s.logger)

	if !s.authorized(req.APIKey) {
		log.Warn("Download status request rejected: invalid api key")
		return nil, unauthorized(opDownloadStatus)
	}
	if req.Bucket == "" || req.Key == "" {
		return nil, invalidInput(opDownloadStatus, "missing bucket or key")
	}

	log = log.With(logger.String("bucket", req.Bucket), logger.String("key", req.Key))

	if err := s.storage.Head(ctx, req.Bucket, req.Key); err != nil {
		if storage.IsNotFound(err) {
			log.Debug("CSV not ready")
			return &models.DownloadResponse{Status: models.DownloadNotFound},
				notFound(opDownloadStatus, "object not found", err)
		}
		log.Error("Failed to check object", logger.Error(err))
		return nil, upstream(opDownloadStatus, "failed to check object", err)
	}

	url, err := s.storage.PresignDownload(ctx, req.Bucket, req.Key, s.config.DownloadURLExpiry.Duration)
	if err != nil {
		log.Error("Failed to presign download URL", logger.Error(err))
		return nil, upstream(opDownloadStatus, "failed to generate download url", err)
	}

	log.Info("Download URL issued")
	return &models.DownloadResponse{
		Status:      models.DownloadReady,
		DownloadURL: url,
	}, nil
}

// JobStatus returns the tracked state of an analysis job.
func (s *Service) JobStatus(ctx context.Context, apiKey, jobID string) (status *models.JobStatus, err error) {
	defer s.observe(opJobStatus, s.now(), &err)

	if !s.authorized(apiKey) {
		return nil, unauthorized(opJobStatus)
	}
	if jobID == "" {
		return nil, invalidInput(opJobStatus, "missing job id")
	}
	if s.jobs == nil {
		return nil, notFound(opJobStatus, "job not found", models.ErrJobNotFound)
	}

	status, err = s.jobs.GetJobStatus(ctx, jobID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return nil, notFound(opJobStatus, "job not found", err)
		}
		return nil, upstream(opJobStatus, "failed to read job status", err)
	}
	return status, nil
}

func (s *Service) authorized(apiKey string) bool {
	if s.config.APIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.config.APIKey)) == 1
}

// loadJob returns the tracked record for n, or a fresh one when none exists.
func (s *Service) loadJob(ctx context.Context, n events.AnalysisNotification) *models.JobStatus {
	if s.jobs != nil {
		if job, err := s.jobs.GetJobStatus(ctx, n.JobID); err == nil {
			return job
		}
	}
	job := &models.JobStatus{
		JobID:     n.JobID,
		Bucket:    n.Bucket(),
		SourceKey: n.Key(),
	}
	if n.Timestamp > 0 {
		job.StartedAt = time.UnixMilli(n.Timestamp).UTC()
	}
	return job
}

// saveJob records job state. Failures are logged and never returned.
func (s *Service) saveJob(ctx context.Context, job *models.JobStatus) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.SaveJobStatus(ctx, job); err != nil {
		s.logger.Warn("Failed to save job status",
			logger.String("jobId", job.JobID),
			logger.String("state", string(job.State)),
			logger.Error(err),
		)
	}
}

func (s *Service) observe(op string, started time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	var recorded error
	if *err != nil && KindOf(*err) != KindNotFound {
		recorded = *err
	}
	s.metrics.RecordOperation(op, recorded, s.now().Sub(started))
}

func joinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
