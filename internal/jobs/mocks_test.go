package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmancini/pickflow/internal/metrics"
	"github.com/dmancini/pickflow/internal/modelapi"
	"github.com/dmancini/pickflow/internal/store"
	"github.com/dmancini/pickflow/pkg/models"
)

// --- mock store ---

type mockStore struct {
	mu            sync.Mutex
	jobs          map[uuid.UUID]*models.Job
	statusUpdates []string
	createJobErr  error
	updateErr     error
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateJob(_ context.Context, job *models.Job) error {
	if s.createJobErr != nil {
		return s.createJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *mockStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *mockStore) ListJobs(_ context.Context, _ store.JobFilter) ([]*models.Job, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []*models.Job
	for _, j := range s.jobs {
		cp := *j
		jobs = append(jobs, &cp)
	}
	return jobs, len(jobs), nil
}

var mockTransitions = map[string][]string{
	models.JobStatusQueued:  {models.JobStatusRunning},
	models.JobStatusRunning: {models.JobStatusRunning, models.JobStatusCompleted, models.JobStatusFailed},
}

// UpdateJobStatus mirrors the Postgres transition validation so processor
// redelivery behavior can be exercised without a database.
func (s *mockStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}

	valid := false
	for _, a := range mockTransitions[j.Status] {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, j.Status, status)
	}

	j.Status = status
	j.UpdatedAt = time.Now().UTC()
	if models.Terminal(status) {
		now := j.UpdatedAt
		j.CompletedAt = &now
	}
	applyUpdateOptions(j, opts)
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func applyUpdateOptions(j *models.Job, opts []store.JobUpdateOption) {
	params := store.CollectUpdate(opts...)
	if params.ErrorMessage != nil {
		j.ErrorMessage = params.ErrorMessage
	}
	if params.Results != nil {
		j.Results = params.Results
	}
	if params.ResultsBlob != nil {
		j.ResultsBlob = params.ResultsBlob
	}
}

func (s *mockStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error { return nil }
func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *mockStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error)   { return nil, nil }
func (s *mockStore) RevokeAPIKey(_ context.Context, _ uuid.UUID) error         { return nil }

// statuses returns the sequence of status updates applied so far.
func (s *mockStore) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.statusUpdates))
	copy(out, s.statusUpdates)
	return out
}

// --- mock queue ---

type mockQueue struct {
	mu         sync.Mutex
	messages   []models.DispatchMessage
	enqueueErr error
}

func (q *mockQueue) Enqueue(_ context.Context, msg models.DispatchMessage) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

func (q *mockQueue) Dequeue(_ context.Context) (*models.DispatchMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, fmt.Errorf("empty")
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return &msg, nil
}

func (q *mockQueue) Ping(_ context.Context) error { return nil }

func (q *mockQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// --- mock cache ---

type mockCache struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[string]string)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *mockCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID.String()] = status
	return nil
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID.String()]
	return s, ok, nil
}

// --- mock publisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (p *mockPublisher) Publish(_ context.Context, event models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *mockPublisher) published() []models.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ProgressEvent, len(p.events))
	copy(out, p.events)
	return out
}

// --- mock model client ---

type mockModelClient struct {
	executeFunc func(ctx context.Context, endpoint string, req modelapi.ExecuteRequest) (json.RawMessage, error)
}

func (c *mockModelClient) Execute(ctx context.Context, endpoint string, req modelapi.ExecuteRequest) (json.RawMessage, error) {
	if c.executeFunc != nil {
		return c.executeFunc(ctx, endpoint, req)
	}
	return json.RawMessage(`{}`), nil
}

// --- shared helpers ---

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}
