package models

import (
	"errors"
	"time"
)

// UploadRequest is the body accepted by the upload URL generator.
type UploadRequest struct {
	APIKey      string `json:"apiKey"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

type UploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	S3Key     string `json:"s3Key"`
	Bucket    string `json:"bucket"`
}

// DownloadRequest asks whether a processed CSV is ready.
type DownloadRequest struct {
	APIKey string `json:"apiKey"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type DownloadStatus string

const (
	DownloadReady    DownloadStatus = "READY"
	DownloadNotFound DownloadStatus = "NOT_FOUND"
)

type DownloadResponse struct {
	Status      DownloadStatus `json:"status"`
	DownloadURL string         `json:"downloadUrl,omitempty"`
}

// ProcessResult describes the CSV written for a finished analysis job.
type ProcessResult struct {
	JobID  string `json:"jobId"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Pages  int    `json:"pages"`
	Cells  int    `json:"cells"`
	Bytes  int    `json:"bytes"`
}

type JobState string

const (
	JobStarted   JobState = "started"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// JobStatus is the tracked lifecycle of one analysis job.
type JobStatus struct {
	JobID       string    `json:"jobId"`
	State       JobState  `json:"state"`
	Bucket      string    `json:"bucket"`
	SourceKey   string    `json:"sourceKey"`
	CSVKey      string    `json:"csvKey,omitempty"`
	Pages       int       `json:"pages,omitempty"`
	Cells       int       `json:"cells,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
}

// ErrJobNotFound is returned by job trackers for an unknown or expired job id.
var ErrJobNotFound = errors.New("job not found")
