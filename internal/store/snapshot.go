package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trustgate/trustgate/internal/domain/snapshot"
	"github.com/trustgate/trustgate/internal/trustgateerr"
)

// insertSnapshot appends snap as a new, monotonic row; CreatedAt defaults to
// now if zero. snap.ID is populated with the assigned rowid.
func insertSnapshot(ctx context.Context, tx *sql.Tx, snap *snapshot.Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (service_id, canonical_json, hash, approved_status, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ServiceID, snap.CanonicalJSON, snap.Hash, string(snap.ApprovedStatus), snap.CreatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert snapshot for service %s: %w", snap.ServiceID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted snapshot id: %w", err)
	}
	snap.ID = id
	return nil
}

// AppendSnapshot inserts a new snapshot row for serviceID. Monotonic
// insert-only; snapshots are never deleted except via DeleteService's
// cascade.
func (s *Store) AppendSnapshot(ctx context.Context, serviceID, canonicalJSON, hash string, status snapshot.ApprovalStatus) (*snapshot.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append_snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snap := &snapshot.Snapshot{ServiceID: serviceID, CanonicalJSON: canonicalJSON, Hash: hash, ApprovedStatus: status}
	if err := insertSnapshot(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append_snapshot: %w", err)
	}
	return snap, nil
}

func scanSnapshot(r rowScanner) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	var status, createdAt string
	if err := r.Scan(&snap.ID, &snap.ServiceID, &snap.CanonicalJSON, &snap.Hash, &status, &createdAt); err != nil {
		return nil, err
	}
	snap.ApprovedStatus = snapshot.ApprovalStatus(status)
	var err error
	if snap.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse snapshot created_at: %w", err)
	}
	return &snap, nil
}

// LatestSnapshot returns the most recently inserted snapshot for
// serviceID, regardless of approval status, or trustgateerr.ErrSnapshotNotFound.
func (s *Store) LatestSnapshot(ctx context.Context, serviceID string) (*snapshot.Snapshot, error) {
	return latestSnapshotWhere(ctx, s.db, serviceID, "")
}

// LatestApprovedSnapshot returns the most recent snapshot whose status is
// USER_APPROVED or SYSTEM_APPROVED, or trustgateerr.ErrSnapshotNotFound.
func (s *Store) LatestApprovedSnapshot(ctx context.Context, serviceID string) (*snapshot.Snapshot, error) {
	return latestSnapshotWhere(ctx, s.db, serviceID,
		fmt.Sprintf("AND approved_status IN ('%s', '%s')", snapshot.UserApproved, snapshot.SystemApproved))
}

func latestSnapshotWhere(ctx context.Context, q querier, serviceID, extraWhere string) (*snapshot.Snapshot, error) {
	query := fmt.Sprintf(
		`SELECT id, service_id, canonical_json, hash, approved_status, created_at
		 FROM snapshots WHERE service_id = ? %s
		 ORDER BY created_at DESC, id DESC LIMIT 1`, extraWhere)
	row := q.QueryRowContext(ctx, query, serviceID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, trustgateerr.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot for service %s: %w", serviceID, err)
	}
	return snap, nil
}

// ApproveLatest promotes the latest snapshot of the named service to
// USER_APPROVED and sets enabled = true, atomically. Idempotent if the
// latest snapshot is already USER_APPROVED.
func (s *Store) ApproveLatest(ctx context.Context, name string) (*snapshot.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approve_latest: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	svc, err := getServiceTx(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	latest, err := latestSnapshotWhere(ctx, tx, svc.ID, "")
	if err != nil {
		return nil, err
	}

	if latest.ApprovedStatus != snapshot.UserApproved {
		if _, err := tx.ExecContext(ctx,
			`UPDATE snapshots SET approved_status = ? WHERE id = ?`, string(snapshot.UserApproved), latest.ID); err != nil {
			return nil, fmt.Errorf("promote snapshot %d: %w", latest.ID, err)
		}
		latest.ApprovedStatus = snapshot.UserApproved
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE services SET enabled = 1, updated_at = ? WHERE id = ?`, time.Now().UTC().Format(timeLayout), svc.ID); err != nil {
		return nil, fmt.Errorf("enable service %s: %w", name, err)
	}
	if err := insertAudit(ctx, tx, svc.ID, "user", "approve_latest", name); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve_latest: %w", err)
	}
	return latest, nil
}

// RecordCheck persists the outcome of one Check Scheduler tick for a
// service: it inserts a new snapshot row with the given status and, when
// enabled differs from the service's current value, updates it in the same
// transaction. The decision of what status/enabled to pass is C6's
// responsibility (the approval decision table in spec.md §4.6); this method
// only makes the write atomic.
func (s *Store) RecordCheck(ctx context.Context, serviceID string, canonicalJSON, hash string, status snapshot.ApprovalStatus, enabled bool) (*snapshot.Snapshot, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin record_check: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentEnabled int
	if err := tx.QueryRowContext(ctx, `SELECT enabled FROM services WHERE id = ?`, serviceID).Scan(&currentEnabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, trustgateerr.ErrServiceNotFound
		}
		return nil, false, fmt.Errorf("read service %s enabled flag: %w", serviceID, err)
	}

	snap := &snapshot.Snapshot{ServiceID: serviceID, CanonicalJSON: canonicalJSON, Hash: hash, ApprovedStatus: status}
	if err := insertSnapshot(ctx, tx, snap); err != nil {
		return nil, false, err
	}

	changed := (currentEnabled != 0) != enabled
	if changed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE services SET enabled = ?, updated_at = ? WHERE id = ?`,
			boolToInt(enabled), time.Now().UTC().Format(timeLayout), serviceID); err != nil {
			return nil, false, fmt.Errorf("update enabled for service %s: %w", serviceID, err)
		}
	}
	if err := insertAudit(ctx, tx, serviceID, "system", "check_result", string(status)); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit record_check: %w", err)
	}
	return snap, changed, nil
}
