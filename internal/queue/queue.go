package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType defines the type of job
type JobType string

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a background job persisted in the database
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type" gorm:"type:varchar(100);not null"`
	Payload    json.RawMessage `json:"payload" gorm:"type:jsonb"`
	Status     JobStatus       `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	MaxRetries int             `json:"max_retries" gorm:"default:3"`
	NextRetry  *time.Time      `json:"next_retry,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job *Job) error

// QueueInterface defines the operations jobs and services rely on
type QueueInterface interface {
	RegisterHandler(jobType JobType, handler JobHandler)
	Enqueue(jobType JobType, payload interface{}) (uuid.UUID, error)
	EnqueueTx(tx *gorm.DB, jobType JobType, payload interface{}) (uuid.UUID, error)
	ProcessPending(ctx context.Context, limit int) error
}

// Queue is a database-backed job queue. Jobs survive restarts and are retried
// with exponential backoff until MaxRetries is exhausted.
type Queue struct {
	db       *gorm.DB
	mu       sync.RWMutex
	handlers map[JobType]JobHandler
}

// NewQueue creates a new queue
func NewQueue(db *gorm.DB) *Queue {
	return &Queue{
		db:       db,
		handlers: make(map[JobType]JobHandler),
	}
}

// RegisterHandler registers a handler for a job type
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue adds a job to the queue
func (q *Queue) Enqueue(jobType JobType, payload interface{}) (uuid.UUID, error) {
	return q.EnqueueTx(q.db, jobType, payload)
}

// EnqueueTx adds a job through the caller's transaction. The job row commits
// or rolls back together with the caller's other writes, so a state change
// and its follow-up work cannot be split by a crash.
func (q *Queue) EnqueueTx(tx *gorm.DB, jobType JobType, payload interface{}) (uuid.UUID, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:      uuid.New(),
		Type:    jobType,
		Payload: payloadBytes,
		Status:  JobStatusPending,
	}

	if err := tx.Create(&job).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return job.ID, nil
}

// ProcessPending claims and runs due jobs. It is called by the scheduler and
// is safe to invoke concurrently: the conditional status update claims each
// job exactly once.
func (q *Queue) ProcessPending(ctx context.Context, limit int) error {
	var jobs []Job
	now := time.Now()
	err := q.db.
		Where("status = ? AND (next_retry IS NULL OR next_retry <= ?)", JobStatusPending, now).
		Order("created_at").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]

		claimed := q.db.Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, JobStatusPending).
			Update("status", JobStatusProcessing)
		if claimed.Error != nil {
			return claimed.Error
		}
		if claimed.RowsAffected == 0 {
			continue // another worker got it
		}

		q.runJob(ctx, job)
	}

	return nil
}

func (q *Queue) runJob(ctx context.Context, job *Job) {
	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()

	if !ok {
		log.Printf("queue: no handler registered for job type %s", job.Type)
		q.db.Model(job).Updates(map[string]interface{}{
			"status": JobStatusFailed,
			"error":  fmt.Sprintf("no handler for job type %s", job.Type),
		})
		return
	}

	if err := handler(ctx, job); err != nil {
		q.handleFailure(job, err)
		return
	}

	q.db.Model(job).Updates(map[string]interface{}{
		"status": JobStatusCompleted,
		"error":  "",
	})
}

func (q *Queue) handleFailure(job *Job, jobErr error) {
	job.RetryCount++
	if job.RetryCount > job.MaxRetries {
		log.Printf("queue: job %s (%s) failed permanently: %v", job.ID, job.Type, jobErr)
		q.db.Model(job).Updates(map[string]interface{}{
			"status":      JobStatusFailed,
			"retry_count": job.RetryCount,
			"error":       jobErr.Error(),
		})
		return
	}

	nextRetry := time.Now().Add(calculateBackoff(job.RetryCount))
	log.Printf("queue: job %s (%s) failed, retry %d/%d at %s: %v",
		job.ID, job.Type, job.RetryCount, job.MaxRetries, nextRetry.Format(time.RFC3339), jobErr)
	q.db.Model(job).Updates(map[string]interface{}{
		"status":      JobStatusPending,
		"retry_count": job.RetryCount,
		"next_retry":  nextRetry,
		"error":       jobErr.Error(),
	})
}

// calculateBackoff returns the delay before a retry: exponential from a
// 5 second base, capped at an hour, with ±20% jitter.
func calculateBackoff(retry int) time.Duration {
	base := 5.0
	max := 3600.0

	seconds := math.Min(max, base*math.Pow(2, float64(retry)))

	jitter := seconds * 0.2
	seconds = seconds - jitter + (rand.Float64() * jitter * 2)

	return time.Duration(seconds) * time.Second
}
