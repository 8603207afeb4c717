package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/index"
)

// DeletionRecord is one row of the append-only deleted_files table.
type DeletionRecord struct {
	ID               int64   `json:"id"`
	OriginalPath     string  `json:"original_path"`
	Filename         string  `json:"filename"`
	Size             int64   `json:"size"`
	Category         string  `json:"category"`
	Reason           string  `json:"reason"`
	DeletedAt        float64 `json:"deleted_at"`
	BackupPath       string  `json:"backup_path,omitempty"`
	RecoveryPossible bool    `json:"recovery_possible"`
}

// MovementRecord is one row of the append-only file_movements table.
type MovementRecord struct {
	ID           int64   `json:"id"`
	OriginalPath string  `json:"original_path"`
	NewPath      string  `json:"new_path"`
	MovementType string  `json:"movement_type"`
	Reason       string  `json:"reason"`
	MovedAt      float64 `json:"moved_at"`
	Size         int64   `json:"size"`
}

// TrackDeletion persists a confirmed deletion and logically removes the
// path from the index. Size and category come from the indexed record
// when one exists; the file itself is already gone from disk.
func (t *Tracker) TrackDeletion(ctx context.Context, path, reason, backupPath string) error {
	var size int64
	category, _ := index.Classify(filepath.Ext(path))
	if rec, err := t.store.GetFile(ctx, path); err == nil {
		size = rec.Size
		category = rec.Category
	}

	conn, err := t.store.Pool().Acquire(ctx)
	if err != nil {
		return err
	}
	defer t.store.Pool().Release(conn)

	_, err = conn.DB().ExecContext(ctx, `
		INSERT INTO deleted_files
			(original_path, filename, size, category, reason, deleted_at, backup_path, recovery_possible)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, path, filepath.Base(path), size, category, reason,
		unixSeconds(time.Now()), backupPath, backupPath != "")
	if err != nil {
		return fmt.Errorf("tracker: insert deletion: %w", err)
	}

	if err := t.store.DeleteFile(ctx, path); err != nil {
		t.logger.Warn("tracker: index removal failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	t.logger.Info("tracker: deletion recorded", slog.String("path", path), slog.String("reason", reason))
	return nil
}

// TrackMovement persists a move and removes the old path from the index;
// the destination is picked up by the next watcher or reindex pass.
func (t *Tracker) TrackMovement(ctx context.Context, src, dst, movementType, reason string) error {
	var size int64
	if rec, err := t.store.GetFile(ctx, src); err == nil {
		size = rec.Size
	}

	conn, err := t.store.Pool().Acquire(ctx)
	if err != nil {
		return err
	}
	defer t.store.Pool().Release(conn)

	_, err = conn.DB().ExecContext(ctx, `
		INSERT INTO file_movements
			(original_path, new_path, movement_type, reason, moved_at, size)
		VALUES (?, ?, ?, ?, ?, ?)
	`, src, dst, movementType, reason, unixSeconds(time.Now()), size)
	if err != nil {
		return fmt.Errorf("tracker: insert movement: %w", err)
	}

	if err := t.store.DeleteFile(ctx, src); err != nil {
		t.logger.Warn("tracker: index removal failed", slog.String("path", src), slog.String("error", err.Error()))
	}
	t.logger.Info("tracker: movement recorded",
		slog.String("from", src), slog.String("to", dst), slog.String("type", movementType))
	return nil
}

// RecentDeletions lists the newest deletion records.
func (t *Tracker) RecentDeletions(ctx context.Context, limit int) ([]DeletionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	conn, err := t.store.Pool().Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.Pool().Release(conn)

	rows, err := conn.DB().QueryContext(ctx, `
		SELECT id, original_path, filename, size, category, reason,
		       deleted_at, backup_path, recovery_possible
		FROM deleted_files
		ORDER BY deleted_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("tracker: recent deletions: %w", err)
	}
	defer rows.Close()

	var out []DeletionRecord
	for rows.Next() {
		var r DeletionRecord
		if err := rows.Scan(&r.ID, &r.OriginalPath, &r.Filename, &r.Size,
			&r.Category, &r.Reason, &r.DeletedAt, &r.BackupPath, &r.RecoveryPossible); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentMovements lists the newest movement records.
func (t *Tracker) RecentMovements(ctx context.Context, limit int) ([]MovementRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	conn, err := t.store.Pool().Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.Pool().Release(conn)

	rows, err := conn.DB().QueryContext(ctx, `
		SELECT id, original_path, new_path, movement_type, reason, moved_at, size
		FROM file_movements
		ORDER BY moved_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("tracker: recent movements: %w", err)
	}
	defer rows.Close()

	var out []MovementRecord
	for rows.Next() {
		var r MovementRecord
		if err := rows.Scan(&r.ID, &r.OriginalPath, &r.NewPath, &r.MovementType,
			&r.Reason, &r.MovedAt, &r.Size); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReasonCount is one row of the per-reason deletion breakdown.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// DeletionStats summarizes the audit tables.
type DeletionStats struct {
	TotalDeletions    int64         `json:"total_deletions"`
	TotalMovements    int64         `json:"total_movements"`
	Recoverable       int64         `json:"recoverable"`
	DeletionsByReason []ReasonCount `json:"deletions_by_reason"`
}

// Stats aggregates deletion and movement counters.
func (t *Tracker) Stats(ctx context.Context) (*DeletionStats, error) {
	conn, err := t.store.Pool().Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.Pool().Release(conn)

	out := &DeletionStats{}
	db := conn.DB()
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(recovery_possible), 0) FROM deleted_files`).
		Scan(&out.TotalDeletions, &out.Recoverable); err != nil {
		return nil, fmt.Errorf("tracker: deletion stats: %w", err)
	}
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_movements`).Scan(&out.TotalMovements); err != nil {
		return nil, fmt.Errorf("tracker: movement stats: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT reason, COUNT(*) FROM deleted_files
		GROUP BY reason ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("tracker: deletion reasons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rc ReasonCount
		if err := rows.Scan(&rc.Reason, &rc.Count); err != nil {
			return nil, err
		}
		out.DeletionsByReason = append(out.DeletionsByReason, rc)
	}
	return out, rows.Err()
}

// LogRecovery appends to the recovery audit trail for a deletion record.
func (t *Tracker) LogRecovery(ctx context.Context, deletionID int64, recoveryPath, status, notes string) error {
	conn, err := t.store.Pool().Acquire(ctx)
	if err != nil {
		return err
	}
	defer t.store.Pool().Release(conn)

	var exists int
	if err := conn.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deleted_files WHERE id = ?`, deletionID).Scan(&exists); err != nil || exists == 0 {
		return apperr.ErrNotFound
	}

	_, err = conn.DB().ExecContext(ctx, `
		INSERT INTO recovery_log (deleted_file_id, recovery_path, recovered_at, recovery_status, notes)
		VALUES (?, ?, ?, ?, ?)
	`, deletionID, recoveryPath, unixSeconds(time.Now()), status, notes)
	if err != nil {
		return fmt.Errorf("tracker: insert recovery: %w", err)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}
