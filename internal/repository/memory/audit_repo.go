package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/domain"
)

type AuditRepo struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	stored := *entry
	r.entries = append(r.entries, &stored)
	return nil
}

// List returns entries newest first unless SortOrder is "asc".
func (r *AuditRepo) List(_ context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []*domain.AuditEntry{}
	for _, e := range r.entries {
		if f.Actor != nil && e.Actor != *f.Actor {
			continue
		}
		if f.ActorType != nil && e.ActorType != *f.ActorType {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.Resource != nil && e.Resource != *f.Resource {
			continue
		}
		if f.ResourceID != nil && e.ResourceID != *f.ResourceID {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}

	// entries are stored in insertion order
	if f.SortOrder != "asc" {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	return paginate(matched, f.Page, f.PerPage), len(matched), nil
}
