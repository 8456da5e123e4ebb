package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"ldn/pkg/models"
)

// SQLite stores timestamps as unix nanoseconds so that deadline comparisons
// in SQL are plain integer comparisons.
type sqliteMessageRow struct {
	ID                 string         `db:"id"`
	ObjectRef          sql.NullString `db:"object_ref"`
	ContextRef         sql.NullString `db:"context_ref"`
	OriginRef          sql.NullString `db:"origin_ref"`
	InReplyToRef       sql.NullString `db:"in_reply_to_ref"`
	RawPayload         []byte         `db:"raw_payload"`
	ActivityStreamType string         `db:"activity_stream_type"`
	NotifyType         string         `db:"notify_type"`
	QueueStatus        string         `db:"queue_status"`
	QueueAttempts      int            `db:"queue_attempts"`
	QueueLastStartTime sql.NullInt64  `db:"queue_last_start_time"`
	QueueTimeout       sql.NullInt64  `db:"queue_timeout"`
	SourceIP           sql.NullString `db:"source_ip"`
	Version            int64          `db:"version"`
	CreatedAt          int64          `db:"created_at"`
	UpdatedAt          int64          `db:"updated_at"`
}

func (r sqliteMessageRow) toModel() *models.Message {
	msg := &models.Message{
		ID:                 r.ID,
		ObjectRef:          r.ObjectRef.String,
		ContextRef:         r.ContextRef.String,
		OriginRef:          r.OriginRef.String,
		InReplyToRef:       r.InReplyToRef.String,
		RawPayload:         r.RawPayload,
		ActivityStreamType: r.ActivityStreamType,
		NotifyType:         r.NotifyType,
		QueueStatus:        models.QueueStatus(r.QueueStatus),
		QueueAttempts:      r.QueueAttempts,
		SourceIP:           r.SourceIP.String,
		Version:            r.Version,
		CreatedAt:          fromNanos(r.CreatedAt),
		UpdatedAt:          fromNanos(r.UpdatedAt),
	}
	if r.QueueLastStartTime.Valid {
		t := fromNanos(r.QueueLastStartTime.Int64)
		msg.QueueLastStartTime = &t
	}
	if r.QueueTimeout.Valid {
		t := fromNanos(r.QueueTimeout.Int64)
		msg.QueueTimeout = &t
	}
	return msg
}

type sqliteOriginRow struct {
	ID               string          `db:"id"`
	Name             string          `db:"name"`
	Description      string          `db:"description"`
	URL              string          `db:"url"`
	InboxURL         string          `db:"inbox_url"`
	IPLowerBound     string          `db:"ip_lower_bound"`
	IPUpperBound     string          `db:"ip_upper_bound"`
	Enabled          bool            `db:"enabled"`
	Score            sql.NullFloat64 `db:"score"`
	InboundPatterns  []byte          `db:"inbound_patterns"`
	OutboundPatterns []byte          `db:"outbound_patterns"`
	CreatedAt        int64           `db:"created_at"`
	UpdatedAt        int64           `db:"updated_at"`
}

func (r sqliteOriginRow) toModel() (*models.OriginService, error) {
	origin := &models.OriginService{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		URL:          r.URL,
		InboxURL:     r.InboxURL,
		IPLowerBound: r.IPLowerBound,
		IPUpperBound: r.IPUpperBound,
		Enabled:      r.Enabled,
		CreatedAt:    fromNanos(r.CreatedAt),
		UpdatedAt:    fromNanos(r.UpdatedAt),
	}
	if r.Score.Valid {
		v := r.Score.Float64
		origin.Score = &v
	}
	if err := unmarshalPatterns(origin, r.InboundPatterns, r.OutboundPatterns); err != nil {
		return nil, err
	}
	return origin, nil
}

type SQLiteStore struct {
	db   *sqlx.DB
	opts options
}

// OpenSQLite opens (creating if needed) the database file at path. SQLite
// allows a single writer, so the pool is capped at one connection.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func NewSQLiteStore(db *sqlx.DB, opts ...Option) *SQLiteStore {
	return &SQLiteStore{db: db, opts: buildOptions(opts)}
}

func (s *SQLiteStore) now() time.Time {
	return s.opts.clock().UTC()
}

func (s *SQLiteStore) Create(ctx context.Context, msg *models.Message) error {
	now := s.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	msg.Version = 1

	query := `INSERT INTO ldn_messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, nullable(msg.ObjectRef), nullable(msg.ContextRef), nullable(msg.OriginRef), nullable(msg.InReplyToRef),
		msg.RawPayload, msg.ActivityStreamType, msg.NotifyType, string(msg.QueueStatus), msg.QueueAttempts,
		nanosOrNil(msg.QueueLastStartTime), nanosOrNil(msg.QueueTimeout), msg.SourceIP, msg.Version,
		msg.CreatedAt.UnixNano(), msg.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return duplicateMessage(msg.ID, err)
		}
		return storeUnavailable("create", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Message, error) {
	var row sqliteMessageRow
	err := s.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM ldn_messages WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, messageNotFound(id)
	}
	if err != nil {
		return nil, storeUnavailable("get", err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) Update(ctx context.Context, msg *models.Message) error {
	promoteIfRecognized(msg)
	now := s.now()

	query := `UPDATE ldn_messages
		SET object_ref = ?, context_ref = ?, origin_ref = ?, in_reply_to_ref = ?,
			activity_stream_type = ?, notify_type = ?, queue_status = ?, queue_attempts = ?,
			queue_last_start_time = ?, queue_timeout = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	res, err := s.db.ExecContext(ctx, query,
		nullable(msg.ObjectRef), nullable(msg.ContextRef), nullable(msg.OriginRef), nullable(msg.InReplyToRef),
		msg.ActivityStreamType, msg.NotifyType, string(msg.QueueStatus), msg.QueueAttempts,
		nanosOrNil(msg.QueueLastStartTime), nanosOrNil(msg.QueueTimeout), now.UnixNano(),
		msg.ID, msg.Version,
	)
	if err != nil {
		return storeUnavailable("update", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return storeUnavailable("update", err)
	}
	if rows == 0 {
		var n int
		if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ldn_messages WHERE id = ?`, msg.ID); err != nil {
			return storeUnavailable("update", err)
		}
		if n == 0 {
			return messageNotFound(msg.ID)
		}
		return staleMessage(msg.ID)
	}

	msg.Version++
	msg.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) FindOldestToProcess(ctx context.Context, maxAttempts, limit int) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM ldn_messages
		WHERE queue_status = ? AND queue_attempts < ?
			AND (queue_timeout IS NULL OR queue_timeout <= ?)
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?`
	return s.selectMessages(ctx, "find_oldest", query,
		string(models.StatusQueued), maxAttempts, s.now().UnixNano(), limitOrDefault(limit))
}

func (s *SQLiteStore) FindNeedingReprocess(ctx context.Context, limit int) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM ldn_messages
		WHERE queue_status = ? AND queue_attempts > 0
			AND (queue_timeout IS NULL OR queue_timeout <= ?)
		ORDER BY COALESCE(queue_last_start_time, created_at) ASC, rowid ASC
		LIMIT ?`
	return s.selectMessages(ctx, "find_reprocess", query,
		string(models.StatusQueued), s.now().UnixNano(), limitOrDefault(limit))
}

func (s *SQLiteStore) FindStalledInProcessing(ctx context.Context) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM ldn_messages
		WHERE queue_status = ? AND queue_timeout IS NOT NULL AND queue_timeout < ?
		ORDER BY queue_timeout ASC`
	return s.selectMessages(ctx, "find_stalled", query, string(models.StatusProcessing), s.now().UnixNano())
}

func (s *SQLiteStore) FindByRelatedObject(ctx context.Context, objectRef, activityStreamType string) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM ldn_messages
		WHERE object_ref = ? AND LOWER(activity_stream_type) = LOWER(?)
		ORDER BY created_at ASC, rowid ASC`
	return s.selectMessages(ctx, "find_by_object", query, objectRef, activityStreamType)
}

func (s *SQLiteStore) FindReplies(ctx context.Context, inReplyTo, objectRef string, types []string) ([]*models.Message, error) {
	if len(types) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+messageColumns+` FROM ldn_messages
		WHERE in_reply_to_ref = ? AND object_ref = ? AND LOWER(activity_stream_type) IN (?)
		ORDER BY created_at ASC, rowid ASC`, inReplyTo, objectRef, lowerAll(types))
	if err != nil {
		return nil, fmt.Errorf("failed to build replies query: %w", err)
	}
	return s.selectMessages(ctx, "find_replies", s.db.Rebind(query), args...)
}

func (s *SQLiteStore) List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	if filter.Status != "" {
		return s.selectMessages(ctx, "list",
			`SELECT `+messageColumns+` FROM ldn_messages WHERE queue_status = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
			string(filter.Status), limitOrDefault(filter.Limit))
	}
	return s.selectMessages(ctx, "list",
		`SELECT `+messageColumns+` FROM ldn_messages ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limitOrDefault(filter.Limit))
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[models.QueueStatus]int, error) {
	var rows []struct {
		Status string `db:"queue_status"`
		Count  int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT queue_status, COUNT(*) AS n FROM ldn_messages GROUP BY queue_status`); err != nil {
		return nil, storeUnavailable("count", err)
	}

	counts := make(map[models.QueueStatus]int, len(rows))
	for _, r := range rows {
		counts[models.QueueStatus(r.Status)] = r.Count
	}
	return counts, nil
}

func (s *SQLiteStore) selectMessages(ctx context.Context, op, query string, args ...interface{}) ([]*models.Message, error) {
	var rows []sqliteMessageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storeUnavailable(op, err)
	}

	out := make([]*models.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLiteStore) CreateOrigin(ctx context.Context, origin *models.OriginService) error {
	if origin.ID == "" {
		origin.ID = uuid.New().String()
	}
	now := s.now()
	origin.CreatedAt = now
	origin.UpdatedAt = now

	inbound, outbound, err := marshalPatterns(origin)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO ldn_origin_services (`+originColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		origin.ID, origin.Name, origin.Description, origin.URL, origin.InboxURL,
		origin.IPLowerBound, origin.IPUpperBound, origin.Enabled, origin.Score,
		inbound, outbound, now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return duplicateInbox(origin.InboxURL, err)
		}
		return storeUnavailable("create_origin", err)
	}
	return nil
}

func (s *SQLiteStore) getOrigin(ctx context.Context, op, where string, arg interface{}) (*models.OriginService, error) {
	var row sqliteOriginRow
	err := s.db.GetContext(ctx, &row, `SELECT `+originColumns+` FROM ldn_origin_services WHERE `+where+` = ?`, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, originNotFound(fmt.Sprint(arg))
	}
	if err != nil {
		return nil, storeUnavailable(op, err)
	}
	return row.toModel()
}

func (s *SQLiteStore) GetOrigin(ctx context.Context, id string) (*models.OriginService, error) {
	return s.getOrigin(ctx, "get_origin", "id", id)
}

func (s *SQLiteStore) FindOriginByInboxURL(ctx context.Context, inboxURL string) (*models.OriginService, error) {
	return s.getOrigin(ctx, "find_origin", "inbox_url", inboxURL)
}

func (s *SQLiteStore) ListOrigins(ctx context.Context) ([]*models.OriginService, error) {
	var rows []sqliteOriginRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+originColumns+` FROM ldn_origin_services ORDER BY name ASC`); err != nil {
		return nil, storeUnavailable("list_origins", err)
	}

	out := make([]*models.OriginService, 0, len(rows))
	for _, r := range rows {
		origin, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, origin)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateOrigin(ctx context.Context, origin *models.OriginService) error {
	origin.UpdatedAt = s.now()

	inbound, outbound, err := marshalPatterns(origin)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE ldn_origin_services
		SET name = ?, description = ?, url = ?, inbox_url = ?, ip_lower_bound = ?,
			ip_upper_bound = ?, enabled = ?, score = ?, inbound_patterns = ?,
			outbound_patterns = ?, updated_at = ?
		WHERE id = ?`,
		origin.Name, origin.Description, origin.URL, origin.InboxURL, origin.IPLowerBound,
		origin.IPUpperBound, origin.Enabled, origin.Score, inbound, outbound, origin.UpdatedAt.UnixNano(),
		origin.ID,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return duplicateInbox(origin.InboxURL, err)
		}
		return storeUnavailable("update_origin", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return storeUnavailable("update_origin", err)
	}
	if rows == 0 {
		return originNotFound(origin.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteOrigin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ldn_origin_services WHERE id = ?`, id)
	if err != nil {
		return storeUnavailable("delete_origin", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return storeUnavailable("delete_origin", err)
	}
	if rows == 0 {
		return originNotFound(id)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE ldn_messages SET origin_ref = NULL WHERE origin_ref = ?`, id); err != nil {
		return storeUnavailable("delete_origin", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE")
}

func nanosOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
