package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ldn/pkg/models"
)

const pgUniqueViolation = "23505"

const messageColumns = `id, object_ref, context_ref, origin_ref, in_reply_to_ref, raw_payload,
	activity_stream_type, notify_type, queue_status, queue_attempts,
	queue_last_start_time, queue_timeout, source_ip, version, created_at, updated_at`

const originColumns = `id, name, description, url, inbox_url, ip_lower_bound, ip_upper_bound,
	enabled, score, inbound_patterns, outbound_patterns, created_at, updated_at`

type PostgresStore struct {
	db   *sql.DB
	opts options
}

func NewPostgresStore(db *sql.DB, opts ...Option) *PostgresStore {
	return &PostgresStore{db: db, opts: buildOptions(opts)}
}

func (s *PostgresStore) now() time.Time {
	return s.opts.clock().UTC()
}

func (s *PostgresStore) Create(ctx context.Context, msg *models.Message) error {
	now := s.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	msg.Version = 1

	query := `
		INSERT INTO ldn_messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, nullable(msg.ObjectRef), nullable(msg.ContextRef), nullable(msg.OriginRef), nullable(msg.InReplyToRef),
		msg.RawPayload, msg.ActivityStreamType, msg.NotifyType, string(msg.QueueStatus), msg.QueueAttempts,
		nullableTime(msg.QueueLastStartTime), nullableTime(msg.QueueTimeout), msg.SourceIP, msg.Version,
		msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return duplicateMessage(msg.ID, err)
		}
		return storeUnavailable("create", err)
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM ldn_messages WHERE id = $1`

	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, messageNotFound(id)
	}
	if err != nil {
		return nil, storeUnavailable("get", err)
	}
	return msg, nil
}

func (s *PostgresStore) Update(ctx context.Context, msg *models.Message) error {
	promoteIfRecognized(msg)
	now := s.now()

	query := `
		UPDATE ldn_messages
		SET object_ref = $1, context_ref = $2, origin_ref = $3, in_reply_to_ref = $4,
			activity_stream_type = $5, notify_type = $6, queue_status = $7, queue_attempts = $8,
			queue_last_start_time = $9, queue_timeout = $10, version = version + 1, updated_at = $11
		WHERE id = $12 AND version = $13
	`

	res, err := s.db.ExecContext(ctx, query,
		nullable(msg.ObjectRef), nullable(msg.ContextRef), nullable(msg.OriginRef), nullable(msg.InReplyToRef),
		msg.ActivityStreamType, msg.NotifyType, string(msg.QueueStatus), msg.QueueAttempts,
		nullableTime(msg.QueueLastStartTime), nullableTime(msg.QueueTimeout), now,
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
		return s.missingOrStale(ctx, msg.ID)
	}

	msg.Version++
	msg.UpdatedAt = now
	return nil
}

func (s *PostgresStore) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM ldn_messages WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return storeUnavailable("update", err)
	}
	if !exists {
		return messageNotFound(id)
	}
	return staleMessage(id)
}

func (s *PostgresStore) FindOldestToProcess(ctx context.Context, maxAttempts, limit int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM ldn_messages
		WHERE queue_status = $1 AND queue_attempts < $2
			AND (queue_timeout IS NULL OR queue_timeout <= $3)
		ORDER BY created_at ASC, id ASC
		LIMIT $4
	`
	return s.queryMessages(ctx, "find_oldest", query,
		string(models.StatusQueued), maxAttempts, s.now(), limitOrDefault(limit))
}

func (s *PostgresStore) FindNeedingReprocess(ctx context.Context, limit int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM ldn_messages
		WHERE queue_status = $1 AND queue_attempts > 0
			AND (queue_timeout IS NULL OR queue_timeout <= $2)
		ORDER BY COALESCE(queue_last_start_time, created_at) ASC, id ASC
		LIMIT $3
	`
	return s.queryMessages(ctx, "find_reprocess", query,
		string(models.StatusQueued), s.now(), limitOrDefault(limit))
}

func (s *PostgresStore) FindStalledInProcessing(ctx context.Context) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM ldn_messages
		WHERE queue_status = $1 AND queue_timeout IS NOT NULL AND queue_timeout < $2
		ORDER BY queue_timeout ASC
	`
	return s.queryMessages(ctx, "find_stalled", query, string(models.StatusProcessing), s.now())
}

func (s *PostgresStore) FindByRelatedObject(ctx context.Context, objectRef, activityStreamType string) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM ldn_messages
		WHERE object_ref = $1 AND LOWER(activity_stream_type) = LOWER($2)
		ORDER BY created_at ASC
	`
	return s.queryMessages(ctx, "find_by_object", query, objectRef, activityStreamType)
}

func (s *PostgresStore) FindReplies(ctx context.Context, inReplyTo, objectRef string, types []string) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM ldn_messages
		WHERE in_reply_to_ref = $1 AND object_ref = $2 AND LOWER(activity_stream_type) = ANY($3)
		ORDER BY created_at ASC
	`
	return s.queryMessages(ctx, "find_replies", query, inReplyTo, objectRef, pq.Array(lowerAll(types)))
}

func (s *PostgresStore) List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	if filter.Status != "" {
		query := `SELECT ` + messageColumns + ` FROM ldn_messages WHERE queue_status = $1 ORDER BY created_at DESC LIMIT $2`
		return s.queryMessages(ctx, "list", query, string(filter.Status), limitOrDefault(filter.Limit))
	}
	query := `SELECT ` + messageColumns + ` FROM ldn_messages ORDER BY created_at DESC LIMIT $1`
	return s.queryMessages(ctx, "list", query, limitOrDefault(filter.Limit))
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.QueueStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT queue_status, COUNT(*) FROM ldn_messages GROUP BY queue_status`)
	if err != nil {
		return nil, storeUnavailable("count", err)
	}
	defer rows.Close()

	counts := make(map[models.QueueStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeUnavailable("count", err)
		}
		counts[models.QueueStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeUnavailable("count", err)
	}
	return counts, nil
}

func (s *PostgresStore) queryMessages(ctx context.Context, op, query string, args ...interface{}) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeUnavailable(op, err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		msg, err := scanMessage(rows)
		if err != nil {
			return nil, storeUnavailable(op, err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeUnavailable(op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg                                         models.Message
		objectRef, contextRef, originRef, inReplyTo sql.NullString
		sourceIP                                    sql.NullString
		status                                      string
		lastStart, timeout                          sql.NullTime
	)

	err := row.Scan(
		&msg.ID, &objectRef, &contextRef, &originRef, &inReplyTo, &msg.RawPayload,
		&msg.ActivityStreamType, &msg.NotifyType, &status, &msg.QueueAttempts,
		&lastStart, &timeout, &sourceIP, &msg.Version, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.ObjectRef = objectRef.String
	msg.ContextRef = contextRef.String
	msg.OriginRef = originRef.String
	msg.InReplyToRef = inReplyTo.String
	msg.SourceIP = sourceIP.String
	msg.QueueStatus = models.QueueStatus(status)
	if lastStart.Valid {
		t := lastStart.Time.UTC()
		msg.QueueLastStartTime = &t
	}
	if timeout.Valid {
		t := timeout.Time.UTC()
		msg.QueueTimeout = &t
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.UpdatedAt = msg.UpdatedAt.UTC()
	return &msg, nil
}

func (s *PostgresStore) CreateOrigin(ctx context.Context, origin *models.OriginService) error {
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

	query := `
		INSERT INTO ldn_origin_services (` + originColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.db.ExecContext(ctx, query,
		origin.ID, origin.Name, origin.Description, origin.URL, origin.InboxURL,
		origin.IPLowerBound, origin.IPUpperBound, origin.Enabled, origin.Score,
		string(inbound), string(outbound), origin.CreatedAt, origin.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return duplicateInbox(origin.InboxURL, err)
		}
		return storeUnavailable("create_origin", err)
	}

	return nil
}

func (s *PostgresStore) GetOrigin(ctx context.Context, id string) (*models.OriginService, error) {
	query := `SELECT ` + originColumns + ` FROM ldn_origin_services WHERE id = $1`

	origin, err := scanOrigin(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, originNotFound(id)
	}
	if err != nil {
		return nil, storeUnavailable("get_origin", err)
	}
	return origin, nil
}

func (s *PostgresStore) FindOriginByInboxURL(ctx context.Context, inboxURL string) (*models.OriginService, error) {
	query := `SELECT ` + originColumns + ` FROM ldn_origin_services WHERE inbox_url = $1`

	origin, err := scanOrigin(s.db.QueryRowContext(ctx, query, inboxURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, originNotFound(inboxURL)
	}
	if err != nil {
		return nil, storeUnavailable("find_origin", err)
	}
	return origin, nil
}

func (s *PostgresStore) ListOrigins(ctx context.Context) ([]*models.OriginService, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+originColumns+` FROM ldn_origin_services ORDER BY name ASC`)
	if err != nil {
		return nil, storeUnavailable("list_origins", err)
	}
	defer rows.Close()

	var out []*models.OriginService
	for rows.Next() {
		origin, err := scanOrigin(rows)
		if err != nil {
			return nil, storeUnavailable("list_origins", err)
		}
		out = append(out, origin)
	}
	if err := rows.Err(); err != nil {
		return nil, storeUnavailable("list_origins", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateOrigin(ctx context.Context, origin *models.OriginService) error {
	origin.UpdatedAt = s.now()

	inbound, outbound, err := marshalPatterns(origin)
	if err != nil {
		return err
	}

	query := `
		UPDATE ldn_origin_services
		SET name = $1, description = $2, url = $3, inbox_url = $4, ip_lower_bound = $5,
			ip_upper_bound = $6, enabled = $7, score = $8, inbound_patterns = $9,
			outbound_patterns = $10, updated_at = $11
		WHERE id = $12
	`

	res, err := s.db.ExecContext(ctx, query,
		origin.Name, origin.Description, origin.URL, origin.InboxURL, origin.IPLowerBound,
		origin.IPUpperBound, origin.Enabled, origin.Score, string(inbound), string(outbound), origin.UpdatedAt,
		origin.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
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

func (s *PostgresStore) DeleteOrigin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ldn_origin_services WHERE id = $1`, id)
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

	if _, err := s.db.ExecContext(ctx, `UPDATE ldn_messages SET origin_ref = NULL WHERE origin_ref = $1`, id); err != nil {
		return storeUnavailable("delete_origin", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanOrigin(row rowScanner) (*models.OriginService, error) {
	var (
		origin                 models.OriginService
		score                  sql.NullFloat64
		inbound, outbound      []byte
		description, url       sql.NullString
		lowerBound, upperBound sql.NullString
	)

	err := row.Scan(
		&origin.ID, &origin.Name, &description, &url, &origin.InboxURL,
		&lowerBound, &upperBound, &origin.Enabled, &score, &inbound, &outbound,
		&origin.CreatedAt, &origin.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	origin.Description = description.String
	origin.URL = url.String
	origin.IPLowerBound = lowerBound.String
	origin.IPUpperBound = upperBound.String
	if score.Valid {
		v := score.Float64
		origin.Score = &v
	}
	if err := unmarshalPatterns(&origin, inbound, outbound); err != nil {
		return nil, err
	}
	return &origin, nil
}

func marshalPatterns(origin *models.OriginService) ([]byte, []byte, error) {
	inbound, err := json.Marshal(nonNilPatterns(origin.InboundPatterns))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal inbound patterns: %w", err)
	}
	outbound, err := json.Marshal(nonNilPatterns(origin.OutboundPatterns))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal outbound patterns: %w", err)
	}
	return inbound, outbound, nil
}

func unmarshalPatterns(origin *models.OriginService, inbound, outbound []byte) error {
	if len(inbound) > 0 {
		if err := json.Unmarshal(inbound, &origin.InboundPatterns); err != nil {
			return fmt.Errorf("failed to unmarshal inbound patterns: %w", err)
		}
	}
	if len(outbound) > 0 {
		if err := json.Unmarshal(outbound, &origin.OutboundPatterns); err != nil {
			return fmt.Errorf("failed to unmarshal outbound patterns: %w", err)
		}
	}
	return nil
}

func nonNilPatterns(p []models.NotifyPattern) []models.NotifyPattern {
	if p == nil {
		return []models.NotifyPattern{}
	}
	return p
}
