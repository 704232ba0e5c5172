package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/textract-csv/internal/models"
	"github.com/feichai0017/textract-csv/pkg/events"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	var id string
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			id = o.Value().(string)
		}
	}
	return &asynq.TaskInfo{ID: id, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func optionValue(opts []asynq.Option, typ asynq.OptionType) interface{} {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value()
		}
	}
	return nil
}

func TestEnqueueStart(t *testing.T) {
	client := &fakeEnqueuer{}
	q := New(client, QueueConfig{MaxRetries: 5, ProcessTimeout: 15 * time.Minute})

	id, err := q.EnqueueStart(context.Background(), events.ObjectRef{Bucket: "b", Key: "uploads/a b.pdf"})

	require.NoError(t, err)
	assert.Equal(t, "start:b/uploads/a b.pdf", id)
	require.Len(t, client.tasks, 1)
	assert.Equal(t, TaskTypeStartProcessing, client.tasks[0].Type())

	var payload StartPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	assert.Equal(t, StartPayload{Bucket: "b", Key: "uploads/a b.pdf"}, payload)

	assert.Equal(t, QueueDefault, optionValue(client.opts[0], asynq.QueueOpt))
	assert.Equal(t, 5, optionValue(client.opts[0], asynq.MaxRetryOpt))
	assert.Equal(t, 15*time.Minute, optionValue(client.opts[0], asynq.TimeoutOpt))
}

func TestEnqueueProcess(t *testing.T) {
	client := &fakeEnqueuer{}
	q := New(client, QueueConfig{})

	n := events.AnalysisNotification{JobID: "job-1", Status: events.JobSucceeded}
	n.DocumentLocation.S3Bucket = "b"
	n.DocumentLocation.S3ObjectName = "uploads/a.pdf"

	id, err := q.EnqueueProcess(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, "process:job-1", id)
	assert.Equal(t, TaskTypeProcessResult, client.tasks[0].Type())
	assert.Equal(t, QueueCritical, optionValue(client.opts[0], asynq.QueueOpt))
	assert.Nil(t, optionValue(client.opts[0], asynq.MaxRetryOpt))

	var payload ProcessPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	assert.Equal(t, n, payload.Notification)
}

func TestEnqueueDuplicateIsNotAnError(t *testing.T) {
	q := New(&fakeEnqueuer{err: asynq.ErrTaskIDConflict}, QueueConfig{})

	id, err := q.EnqueueProcess(context.Background(), events.AnalysisNotification{JobID: "job-1"})

	require.NoError(t, err)
	assert.Equal(t, "process:job-1", id)
}

func TestEnqueueFailure(t *testing.T) {
	q := New(&fakeEnqueuer{err: errors.New("dial tcp: refused")}, QueueConfig{})

	_, err := q.EnqueueStart(context.Background(), events.ObjectRef{Bucket: "b", Key: "k"})
	assert.ErrorContains(t, err, "failed to enqueue task")
}

type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	val, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestJobStoreRoundTrip(t *testing.T) {
	rdb := newFakeRedis()
	store := NewJobStore(rdb, 0)

	started := time.Date(2024, 3, 10, 4, 30, 0, 0, time.UTC)
	require.NoError(t, store.SaveJobStatus(context.Background(), &models.JobStatus{
		JobID:     "job-1",
		State:     models.JobStarted,
		Bucket:    "b",
		SourceKey: "uploads/a.pdf",
		StartedAt: started,
	}))
	assert.Equal(t, DefaultJobTTL, rdb.ttls["job_status:job-1"])

	got, err := store.GetJobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStarted, got.State)
	assert.Equal(t, "uploads/a.pdf", got.SourceKey)
	assert.True(t, started.Equal(got.StartedAt))
}

func TestJobStoreMissing(t *testing.T) {
	store := NewJobStore(newFakeRedis(), time.Hour)

	_, err := store.GetJobStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestJobStoreRedisError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.getErr = errors.New("connection refused")

	_, err := NewJobStore(rdb, time.Hour).GetJobStatus(context.Background(), "job-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrJobNotFound)
}
