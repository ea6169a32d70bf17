package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/storage"
)

type CleanupConfig struct {
	// StaleAfter is how long a job may stay InProgress before it is
	// presumed lost and marked Failed.
	StaleAfter time.Duration
	// Retention is how long files of settled jobs are kept. Zero keeps
	// them forever.
	Retention time.Duration
}

type CleanupService struct {
	jobs   domain.JobRepository
	stores []storage.FileStore
	audit  *AuditService
	cfg    CleanupConfig
	log    *slog.Logger
	now    func() time.Time
}

func NewCleanupService(
	jobs domain.JobRepository,
	audit *AuditService,
	cfg CleanupConfig,
	log *slog.Logger,
	stores ...storage.FileStore,
) *CleanupService {
	return &CleanupService{
		jobs:   jobs,
		stores: stores,
		audit:  audit,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// StartScheduler runs cleanup at the specified interval. Call in a goroutine.
func (s *CleanupService) StartScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("cleanup scheduler started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.RunCleanup(ctx)
		}
	}
}

type CleanupReport struct {
	Reaped  int
	Expired int
	Orphans int
}

// RunCleanup fails jobs whose build never reported back, drops the files
// of settled jobs past retention, and removes job directories that have
// no job record.
func (s *CleanupService) RunCleanup(ctx context.Context) CleanupReport {
	var report CleanupReport
	now := s.now()

	if s.cfg.StaleAfter > 0 {
		report.Reaped = s.reapStale(ctx, now.Add(-s.cfg.StaleAfter))
	}
	if s.cfg.Retention > 0 {
		report.Expired = s.expireSettled(ctx, now.Add(-s.cfg.Retention))
	}
	report.Orphans = s.removeOrphans(ctx)

	s.log.Info("cleanup completed",
		"reaped", report.Reaped,
		"expired", report.Expired,
		"orphans", report.Orphans,
	)
	return report
}

func (s *CleanupService) reapStale(ctx context.Context, cutoff time.Time) int {
	stale, err := s.jobs.ListInProgressBefore(ctx, cutoff)
	if err != nil {
		s.log.Warn("cleanup: failed to list stale jobs", "err", err)
		return 0
	}

	reaped := 0
	for _, job := range stale {
		// a callback may land between the list and the update; losing
		// that race is fine
		if _, err := s.jobs.TransitionStatus(ctx, job.ID, domain.JobStatusInProgress, domain.JobStatusFailed); err != nil {
			continue
		}
		reaped++
		s.log.Info("cleanup: stale job marked failed", "id", job.ID, "created_at", job.CreatedAt)
		s.audit.Log(ctx, &domain.AuditEntry{
			Actor:      "cleanup",
			ActorType:  domain.ActorTypeSystem,
			Action:     ActionJobReaped,
			Resource:   "job",
			ResourceID: job.ID.String(),
			Details:    map[string]any{"created_at": job.CreatedAt},
		})
	}
	return reaped
}

func (s *CleanupService) expireSettled(ctx context.Context, cutoff time.Time) int {
	settled, err := s.jobs.ListSettledBefore(ctx, cutoff)
	if err != nil {
		s.log.Warn("cleanup: failed to list settled jobs", "err", err)
		return 0
	}
	if len(settled) == 0 {
		return 0
	}

	present := s.onDisk()
	expired := 0
	for _, job := range settled {
		stores := present[job.ID]
		if len(stores) == 0 {
			continue
		}
		removed := true
		for _, store := range stores {
			if err := store.RemoveJob(job.ID); err != nil {
				s.log.Warn("cleanup: failed to remove job files", "id", job.ID, "err", err)
				removed = false
			}
		}
		if removed {
			s.log.Info("cleanup: removed files of settled job", "id", job.ID, "status", job.Status)
			expired++
		}
	}
	return expired
}

func (s *CleanupService) removeOrphans(ctx context.Context) int {
	removed := 0
	for id, stores := range s.onDisk() {
		exists, err := s.jobs.Exists(ctx, id)
		if err != nil {
			s.log.Warn("cleanup: failed to check job", "id", id, "err", err)
			continue
		}
		if exists {
			continue
		}
		for _, store := range stores {
			if err := store.RemoveJob(id); err != nil {
				s.log.Warn("cleanup: failed to remove orphan directory", "id", id, "err", err)
				continue
			}
			removed++
		}
		s.log.Info("cleanup: removed orphan job directory", "id", id)
	}
	return removed
}

// onDisk maps each job id with a directory to the stores holding it.
func (s *CleanupService) onDisk() map[uuid.UUID][]storage.FileStore {
	present := make(map[uuid.UUID][]storage.FileStore)
	for _, store := range s.stores {
		ids, err := store.ListJobs()
		if err != nil {
			s.log.Warn("cleanup: failed to list job directories", "err", err)
			continue
		}
		for _, id := range ids {
			present[id] = append(present[id], store)
		}
	}
	return present
}
