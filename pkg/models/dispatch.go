package models

import (
	"time"

	"github.com/google/uuid"
)

// DispatchMessage is the queue payload instructing a worker to execute one
// specific job. The worker re-derives all behavior from the message content,
// so a redelivered message is processed the same way as the first delivery.
type DispatchMessage struct {
	JobID      uuid.UUID `json:"job_id"`
	Model      string    `json:"model"`
	Params     string    `json:"params"`
	Endpoint   string    `json:"endpoint"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ProgressEvent is broadcast on the progress channel as a job transitions.
// It carries a lightweight summary, never the result payload.
type ProgressEvent struct {
	JobID  uuid.UUID `json:"job_id"`
	Model  string    `json:"model"`
	Status string    `json:"status"`
	Items  int       `json:"items,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}
