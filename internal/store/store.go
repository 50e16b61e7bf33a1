package store

import (
	"context"
	"errors"

	"github.com/dmancini/pickflow/pkg/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// JobFilter narrows a ListJobs query. Zero-value fields are ignored.
type JobFilter struct {
	Model  string
	Status string
	Page   int
	Limit  int
}

// UpdateParams is the resolved form of a set of JobUpdateOptions. Exported so
// in-memory fakes can apply options exactly the way PostgresStore does.
type UpdateParams struct {
	ErrorMessage *string
	Results      *string
	ResultsBlob  *string
}

// CollectUpdate resolves a set of options into their field values.
func CollectUpdate(opts ...JobUpdateOption) UpdateParams {
	var p UpdateParams
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

type JobUpdateOption func(*UpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *UpdateParams) {
		p.ErrorMessage = &msg
	}
}

// WithResults stores the serialized payload inline on the job row.
func WithResults(payload string) JobUpdateOption {
	return func(p *UpdateParams) {
		p.Results = &payload
	}
}

// WithResultsBlob stores a Result Store path instead of an inline payload.
func WithResultsBlob(path string) JobUpdateOption {
	return func(p *UpdateParams) {
		p.ResultsBlob = &path
	}
}
