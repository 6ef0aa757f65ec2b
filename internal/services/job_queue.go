package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// JobKind names a background job
type JobKind string

const (
	JobAssignNotification   JobKind = "assign_notification"
	JobUnassignNotification JobKind = "unassign_notification"
	JobRemindUser           JobKind = "remind_user"
	JobAssignWebhook        JobKind = "assign_webhook"
)

// Job is a unit of background work. Notification jobs carry a snapshot of
// the assignment taken when the job was enqueued.
type Job struct {
	ID                  uuid.UUID          `json:"id"`
	Kind                JobKind            `json:"kind"`
	Assignment          *models.Assignment `json:"assignment,omitempty"`
	ActorID             uint64             `json:"actor_id,omitempty"`
	SkipSmallActionPost bool               `json:"skip_small_action_post,omitempty"`
	UserID              uint64             `json:"user_id,omitempty"`
	Event               string             `json:"event,omitempty"`
	EnqueuedAt          time.Time          `json:"enqueued_at"`
}

// NewJob creates a job with a fresh id
func NewJob(kind JobKind) Job {
	return Job{ID: uuid.New(), Kind: kind, EnqueuedAt: time.Now()}
}

// DecodeJob parses a job from its wire form
func DecodeJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.Kind == "" {
		return job, fmt.Errorf("job %s has no kind", job.ID)
	}
	return job, nil
}

// JobQueue accepts jobs for asynchronous execution
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
}

// JobHandler executes one kind of job
type JobHandler func(ctx context.Context, job Job) error

// JobRunner dispatches jobs to their registered handlers
type JobRunner struct {
	mu       sync.RWMutex
	handlers map[JobKind]JobHandler
	metrics  *AssignMetrics
}

// NewJobRunner creates an empty runner
func NewJobRunner(metrics *AssignMetrics) *JobRunner {
	return &JobRunner{
		handlers: make(map[JobKind]JobHandler),
		metrics:  metrics,
	}
}

// Register sets the handler for a job kind
func (r *JobRunner) Register(kind JobKind, handler JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
}

// Handle runs a job with its handler
func (r *JobRunner) Handle(ctx context.Context, job Job) error {
	r.mu.RLock()
	handler, ok := r.handlers[job.Kind]
	r.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("no handler registered for job kind %q", job.Kind)
		r.metrics.job(job.Kind, err)
		return err
	}

	err := handler(ctx, job)
	r.metrics.job(job.Kind, err)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"job_kind": job.Kind,
		}).Errorf("Job failed: %v", err)
	}
	return err
}

// InlineJobQueue runs jobs synchronously on Enqueue. It is used when no
// broker is configured and in tests.
type InlineJobQueue struct {
	runner *JobRunner
}

// NewInlineJobQueue creates a queue that runs jobs with runner
func NewInlineJobQueue(runner *JobRunner) *InlineJobQueue {
	return &InlineJobQueue{runner: runner}
}

// Enqueue runs the job immediately
func (q *InlineJobQueue) Enqueue(ctx context.Context, job Job) error {
	return q.runner.Handle(ctx, job)
}
