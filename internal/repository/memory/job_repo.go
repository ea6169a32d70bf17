// Package memory holds process-local repositories for single-node
// deployments without a database, and for tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/domain"
)

type JobRepo struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.BuildJob
	now  func() time.Time
}

func NewJobRepo() *JobRepo {
	return &JobRepo{
		jobs: make(map[uuid.UUID]*domain.BuildJob),
		now:  time.Now,
	}
}

func (r *JobRepo) Create(_ context.Context, j *domain.BuildJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[j.ID]; exists {
		return domain.ErrConflict
	}
	now := r.now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	stored := *j
	r.jobs[j.ID] = &stored
	return nil
}

// Callers always receive copies, so a concurrent transition can never be
// observed half-applied.
func (r *JobRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.BuildJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *JobRepo) List(_ context.Context, f domain.JobFilter) ([]*domain.BuildJob, int, error) {
	r.mu.RLock()
	var matched []*domain.BuildJob
	for _, j := range r.jobs {
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		if f.Platform != nil && j.Platform != *f.Platform {
			continue
		}
		if f.Direction != nil && j.Direction != *f.Direction {
			continue
		}
		if f.Filename != nil && !strings.Contains(strings.ToLower(j.Filename), strings.ToLower(*f.Filename)) {
			continue
		}
		cp := *j
		matched = append(matched, &cp)
	}
	r.mu.RUnlock()

	less := jobLess(f.SortBy)
	desc := f.SortOrder != "asc"
	sort.SliceStable(matched, func(a, b int) bool {
		if desc {
			return less(matched[b], matched[a])
		}
		return less(matched[a], matched[b])
	})

	return paginate(matched, f.Page, f.PerPage), len(matched), nil
}

func jobLess(sortBy string) func(a, b *domain.BuildJob) bool {
	switch sortBy {
	case "updated_at":
		return func(a, b *domain.BuildJob) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "status":
		return func(a, b *domain.BuildJob) bool { return a.Status < b.Status }
	case "platform":
		return func(a, b *domain.BuildJob) bool { return a.Platform < b.Platform }
	case "filename":
		return func(a, b *domain.BuildJob) bool { return a.Filename < b.Filename }
	default:
		return func(a, b *domain.BuildJob) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

func (r *JobRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.JobStatus) (*domain.BuildJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != from {
		return nil, domain.ErrJobSettled
	}
	updated := *j
	updated.Status = to
	updated.UpdatedAt = r.now().UTC()
	r.jobs[id] = &updated
	cp := updated
	return &cp, nil
}

func (r *JobRepo) ListInProgressBefore(_ context.Context, cutoff time.Time) ([]*domain.BuildJob, error) {
	return r.collect(func(j *domain.BuildJob) bool {
		return j.Status == domain.JobStatusInProgress && j.CreatedAt.Before(cutoff)
	}), nil
}

func (r *JobRepo) ListSettledBefore(_ context.Context, cutoff time.Time) ([]*domain.BuildJob, error) {
	return r.collect(func(j *domain.BuildJob) bool {
		return j.Status.Terminal() && j.UpdatedAt.Before(cutoff)
	}), nil
}

func (r *JobRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.jobs[id]
	return ok, nil
}

func (r *JobRepo) GetStats(_ context.Context) (*domain.JobStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &domain.JobStats{Total: len(r.jobs)}
	for _, j := range r.jobs {
		switch j.Status {
		case domain.JobStatusInProgress:
			stats.InProgress++
		case domain.JobStatusSuccess:
			stats.Success++
		case domain.JobStatusFailed:
			stats.Failed++
		case domain.JobStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (r *JobRepo) collect(keep func(*domain.BuildJob) bool) []*domain.BuildJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.BuildJob{}
	for _, j := range r.jobs {
		if keep(j) {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out
}

func paginate[T any](items []T, page, perPage int) []T {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
