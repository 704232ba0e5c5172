package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/textract-csv/config"
	"github.com/feichai0017/textract-csv/internal/models"
)

const DefaultJobTTL = 24 * time.Hour

// RedisClient is the subset of redis.Cmdable the job store needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// JobStore keeps job status records in redis for a limited time.
type JobStore struct {
	redis RedisClient
	ttl   time.Duration
}

func NewRedisClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewJobStore(client RedisClient, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobStore{redis: client, ttl: ttl}
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job_status:%s", jobID)
}

func (s *JobStore) SaveJobStatus(ctx context.Context, status *models.JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := s.redis.Set(ctx, jobKey(status.JobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (s *JobStore) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	var status models.JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}
