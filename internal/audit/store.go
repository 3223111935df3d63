package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists audit entries to Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// InsertAuditLog writes one entry.
func (s *PGStore) InsertAuditLog(ctx context.Context, e Entry) error {
	if s == nil || s.Pool == nil {
		return fmt.Errorf("audit: store not configured")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO audit_logs (id, tenant_id, actor_kind, actor_staff_id, action,
		        resource_type, resource_id, method, path, status, ip, user_agent, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.TenantID, e.ActorKind, e.ActorStaffID, e.Action,
		e.ResourceType, e.ResourceID, e.Method, e.Path, e.Status,
		e.IP, e.UserAgent, e.RequestID, metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the tenant's entries, newest first.
func (s *PGStore) ListAuditLogs(ctx context.Context, tenantID string, limit, offset int) ([]Entry, error) {
	if s == nil || s.Pool == nil {
		return nil, fmt.Errorf("audit: store not configured")
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, tenant_id, actor_kind, actor_staff_id, action, resource_type, resource_id,
		       method, path, status, ip, user_agent, request_id, metadata, created_at
		FROM audit_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorKind, &e.ActorStaffID, &e.Action,
			&e.ResourceType, &e.ResourceID, &e.Method, &e.Path, &e.Status,
			&e.IP, &e.UserAgent, &e.RequestID, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if len(metadata) > 0 {
			e.Metadata = metadata
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
