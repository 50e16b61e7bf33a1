package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dmancini/pickflow/internal/blob"
	"github.com/dmancini/pickflow/internal/registry"
	"github.com/dmancini/pickflow/pkg/models"
)

func testDirectory() *registry.Directory {
	return registry.New(map[string]string{
		models.ModelNBA: "http://nba-model:8000",
		models.ModelNFL: "http://nfl-model:8000",
	})
}

func newTestService(st *mockStore, q *mockQueue, results blob.ResultStore) *Service {
	if results == nil {
		results = blob.NewMemoryStore()
	}
	return NewService(st, q, results, testDirectory(), newMockCache(), testMetrics())
}

// --- Submit ---

func TestSubmit_CreatesQueuedJobAndDispatch(t *testing.T) {
	st := newMockStore()
	q := &mockQueue{}
	svc := newTestService(st, q, nil)

	job, err := svc.Submit(context.Background(), SubmitParams{
		Model:  models.ModelNBA,
		Params: json.RawMessage(`{"date":"2025-01-06"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != models.JobStatusQueued {
		t.Errorf("expected status queued, got %s", job.Status)
	}
	if job.ID == uuid.Nil {
		t.Error("expected a generated job id")
	}
	if job.Endpoint != "http://nba-model:8000" {
		t.Errorf("expected resolved endpoint, got %q", job.Endpoint)
	}

	stored, err := st.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job record not created: %v", err)
	}
	if stored.Params != `{"date":"2025-01-06"}` {
		t.Errorf("unexpected stored params: %s", stored.Params)
	}

	if q.len() != 1 {
		t.Fatalf("expected 1 dispatch message, got %d", q.len())
	}
	msg, _ := q.Dequeue(context.Background())
	if msg.JobID != job.ID || msg.Model != models.ModelNBA || msg.Endpoint != job.Endpoint {
		t.Errorf("dispatch message does not match job: %+v", msg)
	}
}

func TestSubmit_UnknownModel(t *testing.T) {
	st := newMockStore()
	q := &mockQueue{}
	svc := newTestService(st, q, nil)

	_, err := svc.Submit(context.Background(), SubmitParams{Model: "curling"})
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}

	// No side effects: no record, no message.
	if len(st.jobs) != 0 {
		t.Errorf("expected no job records, got %d", len(st.jobs))
	}
	if q.len() != 0 {
		t.Errorf("expected no dispatch messages, got %d", q.len())
	}
}

func TestSubmit_MissingModel(t *testing.T) {
	st := newMockStore()
	q := &mockQueue{}
	svc := newTestService(st, q, nil)

	_, err := svc.Submit(context.Background(), SubmitParams{})
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	if len(st.jobs) != 0 || q.len() != 0 {
		t.Error("expected no side effects")
	}
}

func TestSubmit_SupportedModelWithoutEndpoint(t *testing.T) {
	st := newMockStore()
	q := &mockQueue{}
	// nhl is in the supported set but the directory has no endpoint for it.
	svc := newTestService(st, q, nil)

	_, err := svc.Submit(context.Background(), SubmitParams{Model: models.ModelNHL})
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	if len(st.jobs) != 0 || q.len() != 0 {
		t.Error("expected no side effects")
	}
}

func TestSubmit_StoreFailure(t *testing.T) {
	st := newMockStore()
	st.createJobErr = errors.New("connection reset")
	q := &mockQueue{}
	svc := newTestService(st, q, nil)

	_, err := svc.Submit(context.Background(), SubmitParams{Model: models.ModelNBA})
	if err == nil {
		t.Fatal("expected error")
	}
	if q.len() != 0 {
		t.Error("no message should be enqueued when the record was not created")
	}
}

func TestSubmit_EnqueueFailureLeavesQueuedOrphan(t *testing.T) {
	st := newMockStore()
	q := &mockQueue{enqueueErr: errors.New("redis down")}
	svc := newTestService(st, q, nil)

	_, err := svc.Submit(context.Background(), SubmitParams{Model: models.ModelNBA})
	if err == nil {
		t.Fatal("expected error")
	}

	// The record stays behind in queued: a detectable orphan, by design.
	if len(st.jobs) != 1 {
		t.Fatalf("expected 1 orphaned record, got %d", len(st.jobs))
	}
	for _, j := range st.jobs {
		if j.Status != models.JobStatusQueued {
			t.Errorf("orphan should stay queued, got %s", j.Status)
		}
	}
}

func TestSubmit_EmptyParamsDefaultToObject(t *testing.T) {
	st := newMockStore()
	q := &mockQueue{}
	svc := newTestService(st, q, nil)

	job, err := svc.Submit(context.Background(), SubmitParams{Model: models.ModelNFL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Params != "{}" {
		t.Errorf("expected empty params to default to {}, got %q", job.Params)
	}
}

// --- Status ---

func seedJob(t *testing.T, st *mockStore, mutate func(*models.Job)) *models.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.New(),
		Model:     models.ModelNBA,
		Status:    models.JobStatusQueued,
		Params:    `{"date":"2025-01-06"}`,
		Endpoint:  "http://nba-model:8000",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mutate != nil {
		mutate(job)
	}
	if err := st.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func TestStatus_QueuedHasMetadataOnly(t *testing.T) {
	st := newMockStore()
	svc := newTestService(st, &mockQueue{}, nil)
	job := seedJob(t, st, nil)

	view, err := svc.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != models.JobStatusQueued {
		t.Errorf("expected queued, got %s", view.Status)
	}
	if view.Results != nil {
		t.Error("queued view must not carry results")
	}
	if view.Error != "" {
		t.Error("queued view must not carry an error")
	}
	if string(view.Params) != `{"date":"2025-01-06"}` {
		t.Errorf("unexpected params: %s", view.Params)
	}
}

func TestStatus_UnknownJob(t *testing.T) {
	st := newMockStore()
	svc := newTestService(st, &mockQueue{}, nil)
	seedJob(t, st, nil) // real jobs exist, the lookup still misses

	_, err := svc.Status(context.Background(), uuid.New())
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStatus_CompletedInlineResults(t *testing.T) {
	st := newMockStore()
	svc := newTestService(st, &mockQueue{}, nil)

	inline := `[{"game":"BOS@LAL","pick":"BOS -3.5"}]`
	now := time.Now().UTC()
	job := seedJob(t, st, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.Results = &inline
		j.CompletedAt = &now
	})

	view, err := svc.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(view.Results) != inline {
		t.Errorf("unexpected results: %s", view.Results)
	}
	if view.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestStatus_CompletedBlobResults(t *testing.T) {
	st := newMockStore()
	mem := blob.NewMemoryStore()
	svc := newTestService(st, &mockQueue{}, mem)

	payload := `[{"game":"NYK@DEN","pick":"over 224.5"}]`
	path := "results/nba/some-job.json"
	if err := mem.Put(context.Background(), path, []byte(payload)); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	now := time.Now().UTC()
	job := seedJob(t, st, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.ResultsBlob = &path
		j.CompletedAt = &now
	})

	view, err := svc.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(view.Results) != payload {
		t.Errorf("expected blob-resolved results, got %s", view.Results)
	}
}

func TestStatus_FailedIncludesError(t *testing.T) {
	st := newMockStore()
	svc := newTestService(st, &mockQueue{}, nil)

	msg := "model execution timeout: context deadline exceeded"
	now := time.Now().UTC()
	job := seedJob(t, st, func(j *models.Job) {
		j.Status = models.JobStatusFailed
		j.ErrorMessage = &msg
		j.CompletedAt = &now
	})

	view, err := svc.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Error != msg {
		t.Errorf("expected error %q, got %q", msg, view.Error)
	}
	if view.Results != nil {
		t.Error("failed view must not carry results")
	}
}

func TestStatus_IdempotentRead(t *testing.T) {
	st := newMockStore()
	svc := newTestService(st, &mockQueue{}, nil)

	inline := `{"picks":[]}`
	job := seedJob(t, st, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.Results = &inline
	})

	first, err := svc.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := svc.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}

	if first.Status != second.Status || string(first.Results) != string(second.Results) ||
		!first.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("repeated reads differ: %+v vs %+v", first, second)
	}
}
