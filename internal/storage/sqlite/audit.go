package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/opsbot/internal/core"
)

// AuditRepo is the append-only trail of agent activity. Entries are only
// written during a turn; reads exist for offline inspection and tests.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Record(ctx context.Context, entry core.AuditEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	query := `INSERT INTO audit_log (turn_id, kind, payload, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, entry.TurnID, entry.Kind, string(entry.Payload), ts)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListByTurn returns a turn's entries in insertion order.
func (r *AuditRepo) ListByTurn(ctx context.Context, turnID string) ([]core.AuditEntry, error) {
	query := `SELECT turn_id, kind, payload, created_at FROM audit_log WHERE turn_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, turnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []core.AuditEntry
	for rows.Next() {
		var entry core.AuditEntry
		var payload sql.NullString

		if err := rows.Scan(&entry.TurnID, &entry.Kind, &payload, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if payload.Valid {
			entry.Payload = []byte(payload.String)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
