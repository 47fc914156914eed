package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeFlowEvent JobType = "flow_event"
	JobTypeFlowError JobType = "flow_error"
)

const maxRetries = 5

type Job struct {
	ID         string                 `json:"id"`
	Type       JobType                `json:"type"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"created_at"`
	RetryCount int                    `json:"retry_count"`
}

// Queue is a Redis list backed job queue with a processing list, a delayed
// sorted set for retries and a failed list.
type Queue struct {
	client     *redis.Client
	queueName  string
	processing string
	delayed    string
	failed     string
}

func NewQueue(redisURL, queueName string) (*Queue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %v", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return NewQueueWithClient(client, queueName), nil
}

// NewQueueWithClient builds a queue on an existing client.
func NewQueueWithClient(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:     client,
		queueName:  queueName,
		processing: queueName + ":processing",
		delayed:    queueName + ":delayed",
		failed:     queueName + ":failed",
	}
}

func (q *Queue) Enqueue(ctx context.Context, jobType JobType, data map[string]interface{}) error {
	job := Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %v", err)
	}

	if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to push job to queue: %v", err)
	}
	return nil
}

// Dequeue blocks up to timeout for a job. It returns nil, nil when none
// arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job from queue: %v", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected BLPOP result format")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %v", err)
	}

	if err := q.client.RPush(ctx, q.processing, result[1]).Err(); err != nil {
		log.Printf("Warning: Failed to move job %s to processing queue: %v", job.ID, err)
	}
	return &job, nil
}

func (q *Queue) CompleteJob(ctx context.Context, job *Job) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %v", err)
	}
	if err := q.client.LRem(ctx, q.processing, 1, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to remove job from processing queue: %v", err)
	}
	return nil
}

// FailJob schedules a retry with exponential backoff, or moves the job to
// the failed list once retries are exhausted.
func (q *Queue) FailJob(ctx context.Context, job *Job, jobErr error) error {
	original, marshalErr := json.Marshal(job)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal job: %v", marshalErr)
	}
	if err := q.client.LRem(ctx, q.processing, 1, original).Err(); err != nil {
		log.Printf("Warning: Failed to remove job %s from processing queue: %v", job.ID, err)
	}

	job.RetryCount++
	if job.Data == nil {
		job.Data = map[string]interface{}{}
	}
	job.Data["last_error"] = jobErr.Error()

	if job.RetryCount > maxRetries {
		job.Data["all_retries_exhausted"] = true
		finalJSON, _ := json.Marshal(job)
		if err := q.client.RPush(ctx, q.failed, finalJSON).Err(); err != nil {
			return fmt.Errorf("failed to push job to failed queue: %v", err)
		}
		log.Printf("Job %s of type %s moved to failed queue after %d retries", job.ID, job.Type, job.RetryCount-1)
		return nil
	}

	retryAt := time.Now().Add(RetryDelay(job.RetryCount))
	updatedJSON, _ := json.Marshal(job)
	if err := q.client.ZAdd(ctx, q.delayed, &redis.Z{
		Score:  float64(retryAt.Unix()),
		Member: updatedJSON,
	}).Err(); err != nil {
		log.Printf("Warning: Failed to add job to delayed queue, adding to failed queue: %v", err)
		if err := q.client.RPush(ctx, q.failed, updatedJSON).Err(); err != nil {
			return fmt.Errorf("failed to push job to failed queue: %v", err)
		}
		return nil
	}

	log.Printf("Job %s of type %s scheduled for retry %d/%d at %s",
		job.ID, job.Type, job.RetryCount, maxRetries, retryAt.Format("2006-01-02 15:04:05"))
	return nil
}

// RetryDelay is the backoff before the given attempt: 15s, 30s, 60s...
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(15*(1<<(attempt-1))) * time.Second
}

// ProcessDelayedJobs moves due retries back to the main queue.
func (q *Queue) ProcessDelayedJobs(ctx context.Context) error {
	jobs, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", time.Now().Unix()),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed jobs: %v", err)
	}

	for _, jobJSON := range jobs {
		removed, err := q.client.ZRem(ctx, q.delayed, jobJSON).Result()
		if err != nil {
			log.Printf("Warning: Failed to remove job from delayed queue: %v", err)
			continue
		}
		// Outro worker já moveu este job
		if removed == 0 {
			continue
		}
		if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
			log.Printf("Warning: Failed to move delayed job to main queue: %v", err)
		}
	}
	return nil
}

// Ping checks the Redis connection.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Close() error {
	return q.client.Close()
}
