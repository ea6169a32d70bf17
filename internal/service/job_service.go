package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/domain"
)

// maxIDAttempts bounds retries when a freshly drawn id is already taken.
const maxIDAttempts = 5

type JobService struct {
	repo  domain.JobRepository
	log   *slog.Logger
	newID func() (uuid.UUID, error)
}

func NewJobService(repo domain.JobRepository, log *slog.Logger) *JobService {
	return &JobService{repo: repo, log: log, newID: uuid.NewRandom}
}

// Create records a new job in InProgress under a random v4 id drawn from
// crypto/rand. An id that is already taken is redrawn, never reused.
func (s *JobService) Create(ctx context.Context, filename string, direction domain.Direction, platform domain.Platform) (*domain.BuildJob, error) {
	verr := domain.NewValidationError()
	if filename == "" {
		verr.Add("filename", "is required")
	}
	if !platform.Valid() {
		verr.Add("platform", "unsupported platform")
	}
	if !direction.Valid() {
		verr.Add("direction", "unsupported connection direction")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("generate job id: %w", err)
		}
		job := &domain.BuildJob{
			ID:        id,
			Filename:  filename,
			Platform:  platform,
			Direction: direction,
			Status:    domain.JobStatusInProgress,
		}
		err = s.repo.Create(ctx, job)
		if err == nil {
			s.log.Info("build job created", "id", job.ID, "platform", platform, "filename", filename)
			return job, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("create job: %w", err)
		}
		s.log.Warn("job id collision, redrawing", "id", id, "attempt", attempt)
	}
	return nil, fmt.Errorf("create job: %w: no free id after %d attempts", domain.ErrConflict, maxIDAttempts)
}

// SetStatus applies a status reported by the build pipeline. Unknown jobs,
// already-settled jobs and reports of InProgress are accepted without
// effect; applied reports whether the job changed.
func (s *JobService) SetStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) (applied bool, err error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	if status == domain.JobStatusInProgress {
		s.log.Debug("ignoring in-progress report", "id", id)
		return false, nil
	}

	job, err := s.repo.TransitionStatus(ctx, id, domain.JobStatusInProgress, status)
	switch {
	case err == nil:
		s.log.Info("build job settled", "id", id, "status", job.Status)
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn("status report for unknown job ignored", "id", id, "status", status)
		return false, nil
	case errors.Is(err, domain.ErrJobSettled):
		s.log.Info("status report for settled job ignored", "id", id, "status", status)
		return false, nil
	default:
		return false, fmt.Errorf("set job status: %w", err)
	}
}

// Override is the administrative transition. Unlike SetStatus it surfaces
// unknown and already-settled jobs to the caller.
func (s *JobService) Override(ctx context.Context, id uuid.UUID, status domain.JobStatus) (*domain.BuildJob, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: status must be Success, Failed or Cancelled", domain.ErrInvalidInput)
	}
	job, err := s.repo.TransitionStatus(ctx, id, domain.JobStatusInProgress, status)
	if err != nil {
		return nil, err
	}
	s.log.Info("build job status overridden", "id", id, "status", status)
	return job, nil
}

// fail marks an InProgress job Failed, logging rather than returning
// problems since callers are already on an error path.
func (s *JobService) fail(ctx context.Context, id uuid.UUID, reason string) {
	if _, err := s.repo.TransitionStatus(ctx, id, domain.JobStatusInProgress, domain.JobStatusFailed); err != nil {
		s.log.Error("failed to mark job failed", "id", id, "reason", reason, "err", err)
		return
	}
	s.log.Warn("build job failed", "id", id, "reason", reason)
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*domain.BuildJob, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *JobService) List(ctx context.Context, filter domain.JobFilter) ([]*domain.BuildJob, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *JobService) Stats(ctx context.Context) (*domain.JobStats, error) {
	return s.repo.GetStats(ctx)
}
