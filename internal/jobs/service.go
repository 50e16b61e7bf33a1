// Package jobs implements the prediction-job lifecycle: submission,
// asynchronous processing, and status retrieval.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmancini/pickflow/internal/blob"
	"github.com/dmancini/pickflow/internal/cache"
	"github.com/dmancini/pickflow/internal/metrics"
	"github.com/dmancini/pickflow/internal/queue"
	"github.com/dmancini/pickflow/internal/registry"
	"github.com/dmancini/pickflow/internal/store"
	"github.com/dmancini/pickflow/pkg/models"
)

var (
	ErrUnknownModel = errors.New("unknown model type")
	ErrJobNotFound  = errors.New("job not found")
)

// statusCacheTTL bounds how long advisory status entries live in Redis.
const statusCacheTTL = 30 * time.Minute

// SubmitParams holds validated parameters for a job submission.
type SubmitParams struct {
	Model  string
	Params json.RawMessage
}

// StatusView is the polling response for one job. Results is populated only
// for completed jobs, resolved from whichever tier holds the payload; the
// blob path itself is never exposed.
type StatusView struct {
	JobID       uuid.UUID       `json:"job_id"`
	Model       string          `json:"model"`
	Status      string          `json:"status"`
	Params      json.RawMessage `json:"params"`
	Results     json.RawMessage `json:"results,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Service is the orchestrator and status reader for prediction jobs.
type Service struct {
	store     store.Store
	queue     queue.Queue
	results   blob.ResultStore
	directory *registry.Directory
	cache     cache.Cache
	metrics   *metrics.Metrics
}

// NewService creates a new Service.
func NewService(st store.Store, q queue.Queue, results blob.ResultStore, dir *registry.Directory, ca cache.Cache, m *metrics.Metrics) *Service {
	return &Service{
		store:     st,
		queue:     q,
		results:   results,
		directory: dir,
		cache:     ca,
		metrics:   m,
	}
}

// Submit validates the request, durably records a queued job, and enqueues
// one dispatch message. It returns as soon as the message is on the queue;
// processing happens in the worker.
//
// Record creation and enqueue are separate operations: if the enqueue fails
// the queued record remains as a detectable orphan and the caller gets the
// error, so it knows no worker will pick the job up.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.Job, error) {
	if !models.IsSupportedModel(params.Model) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, params.Model)
	}

	endpoint, ok := s.directory.Resolve(params.Model)
	if !ok {
		return nil, fmt.Errorf("%w: no endpoint registered for %q", ErrUnknownModel, params.Model)
	}

	rawParams := string(params.Params)
	if rawParams == "" {
		rawParams = "{}"
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.New(),
		Model:     params.Model,
		Status:    models.JobStatusQueued,
		Params:    rawParams,
		Endpoint:  endpoint,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusQueued, statusCacheTTL)

	err := s.queue.Enqueue(ctx, models.DispatchMessage{
		JobID:      job.ID,
		Model:      job.Model,
		Params:     job.Params,
		Endpoint:   job.Endpoint,
		EnqueuedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue dispatch for job %s: %w", job.ID, err)
	}

	s.metrics.JobsSubmitted.WithLabelValues(job.Model).Inc()
	return job, nil
}

// Status resolves the job record by id and, for completed jobs, the result
// payload from whichever tier it was stored in. It is a pure read.
func (s *Service) Status(ctx context.Context, jobID uuid.UUID) (*StatusView, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	view := &StatusView{
		JobID:       job.ID,
		Model:       job.Model,
		Status:      job.Status,
		Params:      json.RawMessage(job.Params),
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}

	switch job.Status {
	case models.JobStatusCompleted:
		switch {
		case job.ResultsBlob != nil:
			data, err := s.results.Get(ctx, *job.ResultsBlob)
			if err != nil {
				return nil, fmt.Errorf("fetch results for job %s: %w", job.ID, err)
			}
			view.Results = json.RawMessage(data)
		case job.Results != nil:
			view.Results = json.RawMessage(*job.Results)
		}
	case models.JobStatusFailed:
		if job.ErrorMessage != nil {
			view.Error = *job.ErrorMessage
		}
	}

	return view, nil
}

// List returns a page of job records matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error) {
	return s.store.ListJobs(ctx, filter)
}
