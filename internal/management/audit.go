package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AuditLogger interface {
	Record(ctx context.Context, entry AuditLog) error
	// List returns the newest entries first. An empty originID lists all.
	List(ctx context.Context, originID string, limit int) ([]AuditLog, error)
}

// SQLAuditLogger writes to the ldn_audit_logs table. Queries are written with
// ? placeholders and rebound for the driver, so the same code serves postgres
// and sqlite.
type SQLAuditLogger struct {
	db *sqlx.DB
}

func NewSQLAuditLogger(db *sqlx.DB) *SQLAuditLogger {
	return &SQLAuditLogger{db: db}
}

type auditRow struct {
	ID        string         `db:"id"`
	OriginID  sql.NullString `db:"origin_id"`
	Action    string         `db:"action"`
	OldValue  sql.NullString `db:"old_value"`
	NewValue  sql.NullString `db:"new_value"`
	ChangedBy string         `db:"changed_by"`
	IPAddress sql.NullString `db:"ip_address"`
	CreatedAt time.Time      `db:"created_at"`
}

func (a *SQLAuditLogger) Record(ctx context.Context, entry AuditLog) error {
	entry = withDefaults(entry)

	query := a.db.Rebind(`
		INSERT INTO ldn_audit_logs (id, origin_id, action, old_value, new_value, changed_by, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := a.db.ExecContext(ctx, query,
		entry.ID,
		nullString(entry.OriginID),
		entry.Action,
		jsonValue(entry.OldValue),
		jsonValue(entry.NewValue),
		entry.ChangedBy,
		nullString(entry.IPAddress),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", err)
	}
	return nil
}

func (a *SQLAuditLogger) List(ctx context.Context, originID string, limit int) ([]AuditLog, error) {
	query := `SELECT id, origin_id, action, old_value, new_value, changed_by, ip_address, created_at FROM ldn_audit_logs`
	args := []interface{}{}
	if originID != "" {
		query += ` WHERE origin_id = ?`
		args = append(args, originID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	var rows []auditRow
	if err := a.db.SelectContext(ctx, &rows, a.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	logs := make([]AuditLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, AuditLog{
			ID:        r.ID,
			OriginID:  r.OriginID.String,
			Action:    r.Action,
			OldValue:  decodeJSON(r.OldValue),
			NewValue:  decodeJSON(r.NewValue),
			ChangedBy: r.ChangedBy,
			IPAddress: r.IPAddress.String,
			Timestamp: r.CreatedAt,
		})
	}
	return logs, nil
}

// MemoryAuditLogger backs the in-memory store driver.
type MemoryAuditLogger struct {
	mu   sync.Mutex
	logs []AuditLog
}

func NewMemoryAuditLogger() *MemoryAuditLogger {
	return &MemoryAuditLogger{}
}

func (a *MemoryAuditLogger) Record(_ context.Context, entry AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, withDefaults(entry))
	return nil
}

func (a *MemoryAuditLogger) List(_ context.Context, originID string, limit int) ([]AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AuditLog, 0, len(a.logs))
	for i := len(a.logs) - 1; i >= 0; i-- {
		if originID == "" || a.logs[i].OriginID == originID {
			out = append(out, a.logs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func withDefaults(entry AuditLog) AuditLog {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.ChangedBy == "" {
		entry.ChangedBy = "system"
	}
	return entry
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// jsonValue is passed as text so postgres casts it into JSONB.
func jsonValue(v map[string]interface{}) interface{} {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodeJSON(s sql.NullString) map[string]interface{} {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	return out
}
