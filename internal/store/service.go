package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustgate/trustgate/internal/domain/service"
	"github.com/trustgate/trustgate/internal/domain/snapshot"
	"github.com/trustgate/trustgate/internal/trustgateerr"
)

// CreateService inserts a new service together with its first snapshot,
// marked USER_APPROVED, in one transaction. Fails with
// trustgateerr.ErrDuplicateServiceName if the name collides.
func (s *Store) CreateService(ctx context.Context, svc *service.Service, canonicalJSON, hash string) (*service.Service, *snapshot.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin create_service: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	created := *svc
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO services (id, name, upstream_url, enabled, check_frequency_minutes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.Name, created.UpstreamURL, boolToInt(created.Enabled),
		created.CheckFrequencyMinutes, created.CreatedAt.Format(timeLayout), created.UpdatedAt.Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, trustgateerr.ErrDuplicateServiceName
		}
		return nil, nil, fmt.Errorf("insert service: %w", err)
	}

	snap := &snapshot.Snapshot{
		ServiceID:      created.ID,
		CanonicalJSON:  canonicalJSON,
		Hash:           hash,
		ApprovedStatus: snapshot.UserApproved,
		CreatedAt:      now,
	}
	if err := insertSnapshot(ctx, tx, snap); err != nil {
		return nil, nil, err
	}
	if err := insertAudit(ctx, tx, created.ID, "system", "create_service", created.Name); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit create_service: %w", err)
	}
	return &created, snap, nil
}

// FreshSnapshot carries a pre-computed snapshot for UpdateService to persist
// when the upstream URL changes. The caller (the admin orchestration layer)
// is responsible for taking the snapshot against the new URL before calling
// UpdateService; the store itself never makes outbound network calls.
type FreshSnapshot struct {
	CanonicalJSON string
	Hash          string
}

// UpdateService applies patch to the named service. When fresh is non-nil
// (the caller detected an upstream_url change), a new UNAPPROVED snapshot is
// inserted and enabled is forced to false, regardless of patch.Enabled, in
// the same transaction as the field update.
func (s *Store) UpdateService(ctx context.Context, name string, patch service.Patch, fresh *FreshSnapshot) (*service.Service, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update_service: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := getServiceTx(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	patch.Apply(current)
	if fresh != nil {
		current.Enabled = false
	}
	current.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE services SET upstream_url = ?, enabled = ?, check_frequency_minutes = ?, updated_at = ? WHERE id = ?`,
		current.UpstreamURL, boolToInt(current.Enabled), current.CheckFrequencyMinutes,
		current.UpdatedAt.Format(timeLayout), current.ID)
	if err != nil {
		return nil, fmt.Errorf("update service %s: %w", name, err)
	}

	if fresh != nil {
		snap := &snapshot.Snapshot{
			ServiceID:      current.ID,
			CanonicalJSON:  fresh.CanonicalJSON,
			Hash:           fresh.Hash,
			ApprovedStatus: snapshot.Unapproved,
			CreatedAt:      current.UpdatedAt,
		}
		if err := insertSnapshot(ctx, tx, snap); err != nil {
			return nil, err
		}
	}
	if err := insertAudit(ctx, tx, current.ID, "user", "update_service", current.Name); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update_service: %w", err)
	}
	return current, nil
}

// DeleteService removes the named service; its snapshots cascade via the
// foreign key.
func (s *Store) DeleteService(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete_service: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := getServiceTx(ctx, tx, name)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, current.ID); err != nil {
		return fmt.Errorf("delete service %s: %w", name, err)
	}
	if err := insertAudit(ctx, tx, current.ID, "user", "delete_service", current.Name); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete_service: %w", err)
	}
	return nil
}

// GetServiceByName returns the named service, or trustgateerr.ErrServiceNotFound.
func (s *Store) GetServiceByName(ctx context.Context, name string) (*service.Service, error) {
	return getServiceTx(ctx, s.db, name)
}

// ListServices returns every service, ordered by name.
func (s *Store) ListServices(ctx context.Context) ([]service.Service, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, upstream_url, enabled, check_frequency_minutes, created_at, updated_at
		 FROM services ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []service.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getServiceTx(ctx context.Context, q querier, name string) (*service.Service, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, upstream_url, enabled, check_frequency_minutes, created_at, updated_at
		 FROM services WHERE name = ?`, name)
	svc, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, trustgateerr.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", name, err)
	}
	return svc, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(r rowScanner) (*service.Service, error) {
	var svc service.Service
	var enabled int
	var createdAt, updatedAt string
	if err := r.Scan(&svc.ID, &svc.Name, &svc.UpstreamURL, &enabled, &svc.CheckFrequencyMinutes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	svc.Enabled = enabled != 0
	var err error
	if svc.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if svc.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &svc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func insertAudit(ctx context.Context, tx *sql.Tx, serviceID, actor, action, detail string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (service_id, actor, action, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		serviceID, actor, action, detail, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
