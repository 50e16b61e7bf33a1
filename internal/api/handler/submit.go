// Package handler contains the HTTP handlers for the prediction API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmancini/pickflow/internal/api/response"
	"github.com/dmancini/pickflow/internal/jobs"
	"github.com/dmancini/pickflow/pkg/models"
)

// Submitter defines the interface the submit handler depends on.
type Submitter interface {
	Submit(ctx context.Context, params jobs.SubmitParams) (*models.Job, error)
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/predictions.
// A successful submission answers 202 with a Location header for polling;
// the actual model run happens in the worker.
func NewSubmitHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string          `json:"model"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Model == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "model is required", nil)
			return
		}

		if len(req.Params) > 0 && !json.Valid(req.Params) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "params must be valid JSON", nil)
			return
		}

		job, err := svc.Submit(r.Context(), jobs.SubmitParams{
			Model:  req.Model,
			Params: req.Params,
		})
		if err != nil {
			if errors.Is(err, jobs.ErrUnknownModel) {
				response.Error(w, http.StatusBadRequest, "UNSUPPORTED_MODEL",
					"Unsupported model type", map[string]string{
						"model":     req.Model,
						"supported": strings.Join(models.SupportedModels, ", "),
					})
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to submit prediction job", nil)
			return
		}

		statusURL := "/api/v1/predictions/" + job.ID.String()
		response.Accepted(w, statusURL, submitResponse{
			JobID:     job.ID.String(),
			Model:     job.Model,
			Status:    job.Status,
			StatusURL: statusURL,
		})
	}
}

type submitResponse struct {
	JobID     string `json:"job_id"`
	Model     string `json:"model"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}
