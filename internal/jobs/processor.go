package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmancini/pickflow/internal/blob"
	"github.com/dmancini/pickflow/internal/cache"
	"github.com/dmancini/pickflow/internal/metrics"
	"github.com/dmancini/pickflow/internal/modelapi"
	"github.com/dmancini/pickflow/internal/notify"
	"github.com/dmancini/pickflow/internal/queue"
	"github.com/dmancini/pickflow/internal/store"
	"github.com/dmancini/pickflow/pkg/models"
)

// Processor consumes dispatch messages and drives each job to a terminal
// state. The queue is at-least-once, so Process must tolerate seeing the
// same message twice: every step is an overwrite, never an append.
type Processor struct {
	store       store.Store
	queue       queue.Queue
	results     blob.ResultStore
	client      modelapi.Client
	publisher   notify.Publisher
	cache       cache.Cache
	metrics     *metrics.Metrics
	timeout     time.Duration
	inlineLimit int
}

// NewProcessor creates a new Processor. inlineLimit is the largest serialized
// payload, in bytes, stored inline on the job record; anything larger goes to
// the Result Store.
func NewProcessor(st store.Store, q queue.Queue, results blob.ResultStore, client modelapi.Client,
	pub notify.Publisher, ca cache.Cache, m *metrics.Metrics, timeout time.Duration, inlineLimit int) *Processor {
	return &Processor{
		store:       st,
		queue:       q,
		results:     results,
		client:      client,
		publisher:   pub,
		cache:       ca,
		metrics:     m,
		timeout:     timeout,
		inlineLimit: inlineLimit,
	}
}

// Run dequeues and processes dispatch messages until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	slog.Info("processor started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := p.queue.Dequeue(ctx)
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("dequeue failed", "error", err)
				time.Sleep(time.Second)
				continue
			}
			p.Process(ctx, msg)
		}
	}
}

// Process executes one dispatch message. It never returns an error: every
// failure either lands the job in a terminal failed state or leaves the
// record untouched for the queue's redelivery to retry.
func (p *Processor) Process(ctx context.Context, msg *models.DispatchMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in Process", "error", r, "job_id", msg.JobID)
			p.fail(ctx, msg, fmt.Sprintf("panic: %v", r))
		}
	}()

	// Mark running. The running -> running self-transition makes redelivery a
	// no-op here; a message for an already-terminal job is stale and dropped.
	if err := p.store.UpdateJobStatus(ctx, msg.JobID, models.JobStatusRunning); err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTransition):
			slog.Info("dropping redelivered message for terminal job", "job_id", msg.JobID)
		case errors.Is(err, store.ErrNotFound):
			slog.Error("dispatch message references unknown job", "job_id", msg.JobID)
		default:
			slog.Error("mark running failed", "error", err, "job_id", msg.JobID)
		}
		return
	}
	_ = p.cache.SetJobStatus(ctx, msg.JobID, models.JobStatusRunning, statusCacheTTL)
	p.publish(ctx, msg, models.JobStatusRunning, 0, "")

	// Invoke the model endpoint under the hard execution ceiling. Failures are
	// terminal for this job; any retry is the queue's redelivery, not ours.
	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	payload, err := p.client.Execute(execCtx, msg.Endpoint, modelapi.ExecuteRequest{
		Params:        json.RawMessage(msg.Params),
		CorrelationID: msg.JobID,
	})
	p.metrics.ModelCallDuration.WithLabelValues(msg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		p.fail(ctx, msg, err.Error())
		return
	}

	// Tier the result by serialized size.
	var resultOpt store.JobUpdateOption
	if len(payload) <= p.inlineLimit {
		resultOpt = store.WithResults(string(payload))
	} else {
		path := blob.ResultPath(msg.Model, msg.JobID)
		if err := p.results.Put(ctx, path, payload); err != nil {
			p.fail(ctx, msg, fmt.Sprintf("storing result: %v", err))
			return
		}
		resultOpt = store.WithResultsBlob(path)
	}

	if err := p.store.UpdateJobStatus(ctx, msg.JobID, models.JobStatusCompleted, resultOpt); err != nil {
		// The job stays running with no terminal update; redelivery or an
		// operator has to pick it up. See the orphaned-running note in DESIGN.md.
		slog.Error("mark completed failed", "error", err, "job_id", msg.JobID)
		return
	}
	_ = p.cache.SetJobStatus(ctx, msg.JobID, models.JobStatusCompleted, statusCacheTTL)
	p.metrics.JobsCompleted.WithLabelValues(msg.Model).Inc()
	p.publish(ctx, msg, models.JobStatusCompleted, resultItems(payload), "")

	slog.Info("job completed", "job_id", msg.JobID, "model", msg.Model, "result_bytes", len(payload))
}

// fail transitions the job to failed with the given message.
func (p *Processor) fail(ctx context.Context, msg *models.DispatchMessage, errMsg string) {
	if err := p.store.UpdateJobStatus(ctx, msg.JobID, models.JobStatusFailed,
		store.WithErrorMessage(errMsg)); err != nil {
		slog.Error("mark failed failed", "error", err, "job_id", msg.JobID)
		return
	}
	_ = p.cache.SetJobStatus(ctx, msg.JobID, models.JobStatusFailed, statusCacheTTL)
	p.metrics.JobsFailed.WithLabelValues(msg.Model).Inc()
	p.publish(ctx, msg, models.JobStatusFailed, 0, errMsg)

	slog.Warn("job failed", "job_id", msg.JobID, "model", msg.Model, "error", errMsg)
}

// publish emits a best-effort progress event; the publisher swallows failures.
func (p *Processor) publish(ctx context.Context, msg *models.DispatchMessage, status string, items int, errMsg string) {
	p.publisher.Publish(ctx, models.ProgressEvent{
		JobID:  msg.JobID,
		Model:  msg.Model,
		Status: status,
		Items:  items,
		Error:  errMsg,
		At:     time.Now().UTC(),
	})
}

// resultItems derives the lightweight summary for progress events: the length
// of a top-level JSON array, or 1 for any other payload shape.
func resultItems(payload json.RawMessage) int {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err == nil {
		return len(items)
	}
	return 1
}
