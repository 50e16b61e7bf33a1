// Package blob is the Result Store: bulk storage for prediction payloads too
// large to inline in the job record.
package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrBlobNotFound is returned by Get for a path that holds no object.
var ErrBlobNotFound = errors.New("blob not found")

// ResultStore stores and retrieves serialized result payloads by path.
type ResultStore interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
}

// ResultPath builds the deterministic object path for a job's result, so a
// redelivered job overwrites its own blob instead of accumulating copies.
func ResultPath(model string, jobID uuid.UUID) string {
	return fmt.Sprintf("results/%s/%s.json", model, jobID)
}
