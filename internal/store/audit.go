package store

import (
	"context"
	"fmt"
	"time"
)

// AuditEntry is one row of the audit_log table, surfaced read-side for the
// admin API's per-service audit trail.
type AuditEntry struct {
	ID        int64
	ServiceID string
	Actor     string
	Action    string
	Detail    string
	CreatedAt time.Time
}

// AuditLog returns every audit_log row for serviceID, oldest first.
func (s *Store) AuditLog(ctx context.Context, serviceID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, service_id, actor, action, detail, created_at
		 FROM audit_log WHERE service_id = ? ORDER BY created_at, id`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("query audit log for service %s: %w", serviceID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ServiceID, &e.Actor, &e.Action, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse audit entry created_at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit log for service %s: %w", serviceID, err)
	}
	return out, nil
}
