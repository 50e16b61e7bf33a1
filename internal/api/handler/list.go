package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmancini/pickflow/internal/api/response"
	"github.com/dmancini/pickflow/internal/store"
	"github.com/dmancini/pickflow/pkg/models"
)

// Lister defines the interface the list handler depends on.
type Lister interface {
	List(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
}

// NewListHandler returns an http.HandlerFunc for GET /api/v1/predictions.
func NewListHandler(svc Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := store.JobFilter{
			Model:  q.Get("model"),
			Status: q.Get("status"),
		}

		if filter.Model != "" && !models.IsSupportedModel(filter.Model) {
			response.Error(w, http.StatusBadRequest, "UNSUPPORTED_MODEL",
				"Unsupported model type", nil)
			return
		}

		if p := q.Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"page must be a positive integer", nil)
				return
			}
			filter.Page = n
		}
		if l := q.Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			filter.Limit = n
		}

		list, total, err := svc.List(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list jobs", nil)
			return
		}

		page := filter.Page
		if page < 1 {
			page = 1
		}
		limit := filter.Limit
		if limit < 1 {
			limit = 20
		}

		if list == nil {
			list = []*models.Job{}
		}
		response.Collection(w, list, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}
