package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

// InsertAuditRecord appends one row to admin_audit_log. executed_at is set by the server.
func (s *Store) InsertAuditRecord(ctx context.Context, tx store.DBTransaction, rec *store.AuditRecord) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO admin_audit_log (action_type, target_table, target_uuid, details, operator, environment)
		VALUES (?, ?, UUID_TO_BIN(?), ?, ?, ?)
	`
	res, err := s.getExecutor(tx).ExecContext(ctx, query,
		rec.ActionType, rec.TargetTable, nullUUIDArg(rec.TargetID), string(details), rec.Operator, rec.Environment)
	if err != nil {
		return fmt.Errorf("failed to write audit record %s: %w", rec.ActionType, err)
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

type auditRow struct {
	ID          int64          `db:"id"`
	ActionType  string         `db:"action_type"`
	TargetTable string         `db:"target_table"`
	TargetID    uuid.NullUUID  `db:"target_uuid"`
	Details     sql.NullString `db:"details"`
	Operator    string         `db:"operator"`
	Environment string         `db:"environment"`
	ExecutedAt  time.Time      `db:"executed_at"`
}

func (r auditRow) record() store.AuditRecord {
	rec := store.AuditRecord{
		ID:          r.ID,
		ActionType:  r.ActionType,
		TargetTable: r.TargetTable,
		TargetID:    r.TargetID,
		Operator:    r.Operator,
		Environment: r.Environment,
		ExecutedAt:  r.ExecutedAt,
	}
	if r.Details.Valid {
		// Rows written by hand may hold non-object JSON; keep them readable.
		if err := json.Unmarshal([]byte(r.Details.String), &rec.Details); err != nil {
			rec.Details = map[string]any{"raw": r.Details.String}
		}
	}
	return rec
}

const auditColumns = `id, action_type, target_table, BIN_TO_UUID(target_uuid) AS target_uuid,
	details, operator, environment, executed_at`

func (s *Store) GetRecentAuditRecords(ctx context.Context, limit int) ([]store.AuditRecord, error) {
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+auditColumns+" FROM admin_audit_log ORDER BY executed_at DESC, id DESC LIMIT ?",
		clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	return toRecords(rows), nil
}

func (s *Store) GetAuditRecordsForTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]store.AuditRecord, error) {
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+auditColumns+` FROM admin_audit_log
		WHERE target_uuid = UUID_TO_BIN(?)
		ORDER BY executed_at DESC, id DESC LIMIT ?`,
		targetID.String(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records of %s: %w", targetID, err)
	}
	return toRecords(rows), nil
}

func clampLimit(limit int) int {
	switch {
	case limit < 1:
		return 20
	case limit > 500:
		return 500
	default:
		return limit
	}
}

func toRecords(rows []auditRow) []store.AuditRecord {
	out := make([]store.AuditRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out
}
