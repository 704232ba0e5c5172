package minio

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/textract-csv/config"
	"github.com/feichai0017/textract-csv/pkg/logger"
)

// A fixed region keeps presigning offline.
func newTestStorage(t *testing.T) *MinioStorage {
	t.Helper()
	s, err := NewMinioStorage(config.Minio{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
	}, logger.NewTestLogger())
	require.NoError(t, err)
	return s
}

func TestPresignUpload(t *testing.T) {
	s := newTestStorage(t)

	u, err := s.PresignUpload(context.Background(), "statements", "uploads/0b7c-2024-03-10-a.pdf", "application/pdf", time.Hour)

	require.NoError(t, err)
	assert.Contains(t, u, "http://localhost:9000/statements/uploads/0b7c-2024-03-10-a.pdf?")
	assert.Contains(t, u, "X-Amz-Expires=3600")
	assert.Contains(t, u, "content-type")
}

func TestPresignDownload(t *testing.T) {
	s := newTestStorage(t)

	u, err := s.PresignDownload(context.Background(), "statements", "processed/a.csv", 5*time.Minute)

	require.NoError(t, err)
	assert.Contains(t, u, "/statements/processed/a.csv?")
	assert.Contains(t, u, "X-Amz-Expires=300")
	assert.Contains(t, u, "response-content-disposition=attachment")
}

func TestIsMissing(t *testing.T) {
	assert.True(t, isMissing(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isMissing(minio.ErrorResponse{StatusCode: http.StatusNotFound}))
	assert.False(t, isMissing(minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}))
	assert.False(t, isMissing(errors.New("dial tcp: refused")))
}

func TestNotFoundError(t *testing.T) {
	cause := minio.ErrorResponse{Code: "NoSuchKey"}
	err := &NotFoundError{Bucket: "b", Key: "k", Err: cause}

	assert.Equal(t, "object b/k not found", err.Error())
	assert.True(t, err.NotFound())

	var resp minio.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, "NoSuchKey", resp.Code)
}
