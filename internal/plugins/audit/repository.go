package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditRepository defines the data access contract for audit log operations.
// The log is append-only: there is no update or delete.
type AuditRepository interface {
	// Log inserts a new audit entry.
	Log(ctx context.Context, entry *Entry) error

	// ListForBrief returns entries for a brief and for the recipients and
	// comments recorded against it, most recent first, with the total count
	// for pagination.
	ListForBrief(ctx context.Context, briefID string, limit, offset int) ([]Entry, int, error)
}

// auditRepository implements AuditRepository with MariaDB queries.
type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log inserts a new audit entry. Snapshots are serialized to JSON; nil
// snapshots are stored as SQL NULL.
func (r *auditRepository) Log(ctx context.Context, entry *Entry) error {
	oldJSON, err := marshalSnapshot(entry.OldData)
	if err != nil {
		return fmt.Errorf("marshaling old_data: %w", err)
	}
	newJSON, err := marshalSnapshot(entry.NewData)
	if err != nil {
		return fmt.Errorf("marshaling new_data: %w", err)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO audit_log (user_id, action, entity_type, entity_id, old_data, new_data, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		entry.UserID, entry.Action, entry.EntityType, entry.EntityID,
		oldJSON, newJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit entry id: %w", err)
	}
	entry.ID = id

	return nil
}

// ListForBrief returns the brief's own entries plus recipient and comment
// entries whose snapshots reference the brief.
func (r *auditRepository) ListForBrief(ctx context.Context, briefID string, limit, offset int) ([]Entry, int, error) {
	where := `(a.entity_type = 'brief' AND a.entity_id = ?)
	          OR (a.entity_type IN ('recipient', 'comment')
	              AND COALESCE(JSON_VALUE(a.new_data, '$.brief_id'), JSON_VALUE(a.old_data, '$.brief_id')) = ?)`
	return r.list(ctx, where, []any{briefID, briefID}, limit, offset)
}

func (r *auditRepository) list(ctx context.Context, where string, args []any, limit, offset int) ([]Entry, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM audit_log a WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT a.id, a.user_id, a.action, a.entity_type, a.entity_id,
	                 a.old_data, a.new_data, a.created_at,
	                 COALESCE(u.display_name, '') AS user_name
	          FROM audit_log a
	          LEFT JOIN users u ON u.id = a.user_id
	          WHERE ` + where + `
	          ORDER BY a.created_at DESC, a.id DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var oldJSON, newJSON []byte
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
			&oldJSON, &newJSON, &e.CreatedAt, &e.UserName,
		); err != nil {
			return nil, 0, fmt.Errorf("scanning audit row: %w", err)
		}
		if e.OldData, err = unmarshalSnapshot(oldJSON); err != nil {
			return nil, 0, err
		}
		if e.NewData, err = unmarshalSnapshot(newJSON); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}

// marshalSnapshot returns nil (SQL NULL) for a nil snapshot, otherwise the
// JSON text.
func marshalSnapshot(data map[string]any) (any, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalSnapshot(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling audit snapshot: %w", err)
	}
	return out, nil
}
