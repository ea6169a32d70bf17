package service

import (
	"context"
	"log/slog"

	"github.com/CaioWing/clientforge/internal/domain"
)

// Audit actions.
const (
	ActionJobCallback     = "job.callback"
	ActionJobOverride     = "job.override_status"
	ActionJobReaped       = "job.reaped"
	ActionOutputUploaded  = "artifact.upload"
	ActionImageUploaded   = "image.upload"
	ActionExternalTrigger = "build.external_trigger"
	ActionBuildSubmitted  = "build.submit"
	ActionLogin           = "auth.login"
)

type AuditService struct {
	repo domain.AuditRepository
	log  *slog.Logger
}

func NewAuditService(repo domain.AuditRepository, log *slog.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

// Log records an audit event. Failures are logged, never returned.
func (s *AuditService) Log(ctx context.Context, entry *domain.AuditEntry) {
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn("failed to write audit log", "action", entry.Action, "resource_id", entry.ResourceID, "err", err)
	}
}

func (s *AuditService) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	return s.repo.List(ctx, filter)
}
