package management

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/api/response"
	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/service"
)

type JobHandler struct {
	jobSvc *service.JobService
}

func NewJobHandler(jobSvc *service.JobService) *JobHandler {
	return &JobHandler{jobSvc: jobSvc}
}

type jobResponse struct {
	*domain.BuildJob
	ShortID string `json:"short_id"`
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := response.ParsePagination(r)
	q := r.URL.Query()

	filter := domain.JobFilter{
		Page:      page,
		PerPage:   perPage,
		SortBy:    q.Get("sort"),
		SortOrder: q.Get("order"),
	}

	if v := q.Get("status"); v != "" {
		s := domain.JobStatus(v)
		if !s.Valid() {
			response.Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &s
	}
	if v := q.Get("platform"); v != "" {
		p := domain.Platform(v)
		if !p.Valid() {
			response.Error(w, http.StatusBadRequest, "invalid platform filter")
			return
		}
		filter.Platform = &p
	}
	if v := q.Get("direction"); v != "" {
		d := domain.Direction(v)
		if !d.Valid() {
			response.Error(w, http.StatusBadRequest, "invalid direction filter")
			return
		}
		filter.Direction = &d
	}
	if v := q.Get("filename"); v != "" {
		filter.Filename = &v
	}

	jobs, total, err := h.jobSvc.List(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	out := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = jobResponse{BuildJob: j, ShortID: j.ShortID()}
	}
	response.Paginated(w, http.StatusOK, out, page, perPage, total)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobSvc.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "failed to get job")
		return
	}

	response.JSON(w, http.StatusOK, jobResponse{BuildJob: job, ShortID: job.ShortID()})
}

type overrideRequest struct {
	Status domain.JobStatus `json:"status"`
}

// Override settles an InProgress job by hand, e.g. to cancel a build whose
// pipeline never reported back.
func (h *JobHandler) Override(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid job id")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobSvc.Override(r.Context(), id, req.Status)
	if err != nil {
		response.FromError(w, err, "failed to update job status")
		return
	}

	response.JSON(w, http.StatusOK, jobResponse{BuildJob: job, ShortID: job.ShortID()})
}

func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobSvc.Stats(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to get job statistics")
		return
	}
	response.JSON(w, http.StatusOK, stats)
}
