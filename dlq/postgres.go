package dlq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

/*
PostgreSQL Schema:

CREATE TABLE wamp_dlq (
    id          VARCHAR(36) PRIMARY KEY,
    peer_id     VARCHAR(64) NOT NULL,
    codec       VARCHAR(32) NOT NULL,
    msg_id      VARCHAR(255),
    frame       BYTEA NOT NULL,
    kind        VARCHAR(32) NOT NULL,
    error       TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT NOW(),
    retried_at  TIMESTAMP
);

CREATE INDEX idx_wamp_dlq_created_at ON wamp_dlq(created_at);
CREATE INDEX idx_wamp_dlq_pending ON wamp_dlq(retried_at) WHERE retried_at IS NULL;
*/

const postgresColumns = "id, peer_id, codec, msg_id, frame, kind, error, created_at, retried_at"

// PostgresStore is a PostgreSQL-based DLQ store
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore creates a new PostgreSQL DLQ store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		table: "wamp_dlq",
	}
}

// WithTable sets a custom table name
func (s *PostgresStore) WithTable(table string) *PostgresStore {
	s.table = table
	return s
}

// Store adds a message to the DLQ
func (s *PostgresStore) Store(ctx context.Context, msg *Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, peer_id, codec, msg_id, frame, kind, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.PeerID,
		msg.Codec,
		sql.NullString{String: msg.MsgID, Valid: msg.MsgID != ""},
		msg.Frame,
		msg.Kind,
		msg.Error,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var msg Message
	var msgID sql.NullString
	var retriedAt sql.NullTime

	err := row.Scan(
		&msg.ID,
		&msg.PeerID,
		&msg.Codec,
		&msgID,
		&msg.Frame,
		&msg.Kind,
		&msg.Error,
		&msg.CreatedAt,
		&retriedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.MsgID = msgID.String
	if retriedAt.Valid {
		msg.RetriedAt = &retriedAt.Time
	}
	return &msg, nil
}

// Get retrieves a single message by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Message, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", postgresColumns, s.table)

	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return msg, nil
}

// List returns messages matching the filter, oldest first
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Message, error) {
	query, args := s.buildListQuery(filter, false)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Count returns the number of messages matching the filter
func (s *PostgresStore) Count(ctx context.Context, filter Filter) (int64, error) {
	query, args := s.buildListQuery(filter, true)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query: %w", err)
	}
	return count, nil
}

// buildListQuery builds the SQL query for List and Count
func (s *PostgresStore) buildListQuery(filter Filter, countOnly bool) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.PeerID != "" {
		add("peer_id = $%d", filter.PeerID)
	}
	if filter.Codec != "" {
		add("codec = $%d", filter.Codec)
	}
	if filter.Kind != "" {
		add("kind = $%d", filter.Kind)
	}
	if !filter.StartTime.IsZero() {
		add("created_at >= $%d", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		add("created_at <= $%d", filter.EndTime)
	}
	if filter.Error != "" {
		add("error ILIKE $%d", "%"+filter.Error+"%")
	}
	if filter.ExcludeRetried {
		conditions = append(conditions, "retried_at IS NULL")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	if countOnly {
		return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.table, whereClause), args
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at ASC, id ASC",
		postgresColumns, s.table, whereClause)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return query, args
}

// MarkRetried marks a message as replayed
func (s *PostgresStore) MarkRetried(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET retried_at = $1 WHERE id = $2", s.table)

	result, err := s.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes a message from the DLQ
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteOlderThan removes messages older than the specified age
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < $1", s.table)

	result, err := s.db.ExecContext(ctx, query, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return result.RowsAffected()
}

// Stats returns DLQ statistics
func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	stats := newStats()

	query := fmt.Sprintf(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE retried_at IS NULL), MIN(created_at), MAX(created_at)
		FROM %s
	`, s.table)

	var oldest, newest sql.NullTime
	err := s.db.QueryRowContext(ctx, query).Scan(&stats.TotalMessages, &stats.PendingMessages, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	stats.RetriedMessages = stats.TotalMessages - stats.PendingMessages
	if oldest.Valid {
		stats.OldestMessage = &oldest.Time
	}
	if newest.Valid {
		stats.NewestMessage = &newest.Time
	}

	if err := s.countBy(ctx, "codec", stats.MessagesByCodec); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "kind", stats.MessagesByKind); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *PostgresStore) countBy(ctx context.Context, column string, into map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s", column, s.table, column))
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}

// Compile-time checks
var _ Store = (*PostgresStore)(nil)
var _ StatsProvider = (*PostgresStore)(nil)
