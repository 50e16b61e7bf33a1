package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmancini/pickflow/internal/api/response"
	"github.com/dmancini/pickflow/internal/jobs"
)

// StatusReader defines the interface the status handler depends on.
type StatusReader interface {
	Status(ctx context.Context, jobID uuid.UUID) (*jobs.StatusView, error)
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/predictions/{jobID}.
func NewStatusHandler(svc StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"jobID must be a valid UUID", nil)
			return
		}

		view, err := svc.Status(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
					"No job exists with the given id", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to read job status", nil)
			return
		}

		response.JSON(w, view)
	}
}
