package management

import (
	"net/http"

	"github.com/CaioWing/clientforge/internal/api/response"
	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/service"
)

type AuditHandler struct {
	auditSvc *service.AuditService
}

func NewAuditHandler(auditSvc *service.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := response.ParsePagination(r)
	q := r.URL.Query()

	filter := domain.AuditFilter{
		Page:      page,
		PerPage:   perPage,
		SortOrder: q.Get("order"),
	}

	for param, dst := range map[string]**string{
		"actor":       &filter.Actor,
		"actor_type":  &filter.ActorType,
		"action":      &filter.Action,
		"resource":    &filter.Resource,
		"resource_id": &filter.ResourceID,
	} {
		if v := q.Get(param); v != "" {
			*dst = &v
		}
	}

	entries, total, err := h.auditSvc.List(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to list audit log")
		return
	}

	response.Paginated(w, http.StatusOK, entries, page, perPage, total)
}
