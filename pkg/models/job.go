// Package models contains shared data models used across the PickFlow codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Supported model types. The submit endpoint rejects anything not listed here.
const (
	ModelNBA   = "nba"
	ModelNFL   = "nfl"
	ModelMLB   = "mlb"
	ModelNHL   = "nhl"
	ModelNCAAB = "ncaab"
)

// SupportedModels enumerates the prediction domains a job may target.
var SupportedModels = []string{ModelNBA, ModelNFL, ModelMLB, ModelNHL, ModelNCAAB}

// IsSupportedModel reports whether model is a member of the supported set.
func IsSupportedModel(model string) bool {
	for _, m := range SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}

// Job tracks one asynchronous model execution. The API returns a job id on
// POST /api/v1/predictions; the client polls GET /api/v1/predictions/{job_id}
// until status is completed or failed.
//
// Exactly one of Results / ResultsBlob is set on a completed job: payloads at
// or under the inline threshold live in the row, larger ones in blob storage.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	Model        string     `db:"model"         json:"model"`
	Status       string     `db:"status"        json:"status"`
	Params       string     `db:"params"        json:"params"`
	Endpoint     string     `db:"endpoint"      json:"-"`
	Results      *string    `db:"results"       json:"results,omitempty"`
	ResultsBlob  *string    `db:"results_blob"  json:"-"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// Terminal reports whether status is one from which no further transition occurs.
func Terminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
