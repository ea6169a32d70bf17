package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CaioWing/clientforge/internal/domain"
)

const jobColumns = `id, filename, platform, direction, status, created_at, updated_at`

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func scanJob(row pgx.Row) (*domain.BuildJob, error) {
	j := &domain.BuildJob{}
	if err := row.Scan(&j.ID, &j.Filename, &j.Platform, &j.Direction, &j.Status, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return j, nil
}

func (r *JobRepo) Create(ctx context.Context, j *domain.BuildJob) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO build_jobs (id, filename, platform, direction, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, j.ID, j.Filename, j.Platform, j.Direction, j.Status).
		Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert build job: %w", err)
	}
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BuildJob, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM build_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get build job: %w", err)
	}
	return j, nil
}

func (r *JobRepo) List(ctx context.Context, f domain.JobFilter) ([]*domain.BuildJob, int, error) {
	page, perPage := normalizePage(f.Page, f.PerPage)

	var b filterBuilder
	if f.Status != nil {
		b.add("status = $%d", *f.Status)
	}
	if f.Platform != nil {
		b.add("platform = $%d", *f.Platform)
	}
	if f.Direction != nil {
		b.add("direction = $%d", *f.Direction)
	}
	if f.Filename != nil {
		b.add("filename ILIKE '%%' || $%d || '%%'", *f.Filename)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM build_jobs "+b.where(), b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count build jobs: %w", err)
	}

	orderCol := "created_at"
	switch f.SortBy {
	case "created_at", "updated_at", "status", "platform", "filename":
		orderCol = f.SortBy
	}

	where := b.where()
	query := fmt.Sprintf(`SELECT %s FROM build_jobs %s ORDER BY %s %s %s`,
		jobColumns, where, orderCol, orderDirection(f.SortOrder), b.page(page, perPage))

	jobs, err := r.query(ctx, query, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list build jobs: %w", err)
	}
	return jobs, total, nil
}

// TransitionStatus is a single compare-and-set UPDATE, so concurrent
// callers for the same job serialize on the row and exactly one wins.
func (r *JobRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.JobStatus) (*domain.BuildJob, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE build_jobs SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+jobColumns, to, id, from))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition build job: %w", err)
	}

	exists, err := r.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrJobSettled
}

func (r *JobRepo) ListInProgressBefore(ctx context.Context, cutoff time.Time) ([]*domain.BuildJob, error) {
	jobs, err := r.query(ctx, `
		SELECT `+jobColumns+` FROM build_jobs
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`, domain.JobStatusInProgress, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale build jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepo) ListSettledBefore(ctx context.Context, cutoff time.Time) ([]*domain.BuildJob, error) {
	jobs, err := r.query(ctx, `
		SELECT `+jobColumns+` FROM build_jobs
		WHERE status <> $1 AND updated_at < $2
		ORDER BY updated_at
	`, domain.JobStatusInProgress, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list settled build jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM build_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check build job: %w", err)
	}
	return exists, nil
}

func (r *JobRepo) GetStats(ctx context.Context) (*domain.JobStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM build_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("build job stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.JobStats{}
	for rows.Next() {
		var status domain.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan build job stats: %w", err)
		}
		stats.Total += count
		switch status {
		case domain.JobStatusInProgress:
			stats.InProgress = count
		case domain.JobStatusSuccess:
			stats.Success = count
		case domain.JobStatusFailed:
			stats.Failed = count
		case domain.JobStatusCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

func (r *JobRepo) query(ctx context.Context, sql string, args ...any) ([]*domain.BuildJob, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*domain.BuildJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
