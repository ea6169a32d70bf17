package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ActorTypeManagement = "management"
	ActorTypeCI         = "ci"
	ActorTypeSystem     = "system"
)

type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	Actor      string         `json:"actor"`
	ActorType  string         `json:"actor_type"` // management, ci, system
	Action     string         `json:"action"`     // e.g. job.override_status, job.callback
	Resource   string         `json:"resource"`   // e.g. job, artifact, auth
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type AuditFilter struct {
	Actor      *string
	ActorType  *string
	Action     *string
	Resource   *string
	ResourceID *string
	Page       int
	PerPage    int
	SortOrder  string
}

type AuditRepository interface {
	Create(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*AuditEntry, int, error)
}
