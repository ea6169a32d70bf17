package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CaioWing/clientforge/internal/domain"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO audit_log (actor, actor_type, action, resource, resource_id, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, entry.Actor, entry.ActorType, entry.Action, entry.Resource,
		entry.ResourceID, detailsJSON, entry.IPAddress).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	page, perPage := normalizePage(f.Page, f.PerPage)

	var b filterBuilder
	if f.Actor != nil {
		b.add("actor = $%d", *f.Actor)
	}
	if f.ActorType != nil {
		b.add("actor_type = $%d", *f.ActorType)
	}
	if f.Action != nil {
		b.add("action = $%d", *f.Action)
	}
	if f.Resource != nil {
		b.add("resource = $%d", *f.Resource)
	}
	if f.ResourceID != nil {
		b.add("resource_id = $%d", *f.ResourceID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log "+b.where(), b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	where := b.where()
	query := fmt.Sprintf(`
		SELECT id, actor, actor_type, action, resource, resource_id, details, ip_address, created_at
		FROM audit_log %s
		ORDER BY created_at %s
		%s
	`, where, orderDirection(f.SortOrder), b.page(page, perPage))

	rows, err := r.pool.Query(ctx, query, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*domain.AuditEntry{}
	for rows.Next() {
		e := &domain.AuditEntry{}
		var detailsJSON []byte
		if err := rows.Scan(
			&e.ID, &e.Actor, &e.ActorType, &e.Action, &e.Resource,
			&e.ResourceID, &detailsJSON, &e.IPAddress, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
			e.Details = map[string]any{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, total, nil
}
