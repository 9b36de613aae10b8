package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Query limits. Reads are clamped, never rejected, so a sloppy caller gets
// a bounded result instead of an error.
const (
	// DefaultQueryLimit applies when a caller requests no explicit limit.
	DefaultQueryLimit = 50

	// MaxQueryLimit caps any single read of the log.
	MaxQueryLimit = 500
)

// Repository defines persistence for the append-only telemetry log.
type Repository interface {
	// Append stores one inbound message and assigns its sequence number.
	// Duplicate deliveries append duplicate records; QoS 1 redelivery is
	// resolved at read time, not write time.
	Append(ctx context.Context, topic string, payload []byte) (*Record, error)

	// QueryByTopic retrieves records for a topic, newest first. limit <= 0
	// applies DefaultQueryLimit; anything above MaxQueryLimit is clamped.
	QueryByTopic(ctx context.Context, topic string, limit int) ([]Record, error)

	// CountByTopic reports how many records a topic holds.
	CountByTopic(ctx context.Context, topic string) (int64, error)

	// PruneBefore deletes records received before the cutoff, returning the
	// number removed. Retention is operator policy, not protocol.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append stores one inbound message and assigns its sequence number.
func (r *SQLiteRepository) Append(ctx context.Context, topic string, payload []byte) (*Record, error) {
	record := &Record{
		Topic:      topic,
		Payload:    string(payload),
		ReceivedAt: time.Now().UTC(),
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO telemetry_log (topic, payload, received_at) VALUES (?, ?, ?)",
		record.Topic,
		record.Payload,
		record.ReceivedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	record.ID = id

	return record, nil
}

// QueryByTopic retrieves records for a topic, newest first.
//
// Ordering is by ingestion time with the sequence number as tiebreaker, so
// records received in the same instant still read back in reverse arrival
// order. Each call runs a fresh query; results are never cached or shared
// between requests.
func (r *SQLiteRepository) QueryByTopic(ctx context.Context, topic string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, topic, payload, received_at FROM telemetry_log
		 WHERE topic = ? ORDER BY received_at DESC, id DESC LIMIT ?`,
		topic, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry log: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var record Record
		var receivedAt string
		if err := rows.Scan(&record.ID, &record.Topic, &record.Payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning telemetry record: %w", err)
		}
		record.ReceivedAt, _ = time.Parse(time.RFC3339Nano, receivedAt) //nolint:errcheck // Format is controlled
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry log: %w", err)
	}
	return records, nil
}

// CountByTopic reports how many records a topic holds.
func (r *SQLiteRepository) CountByTopic(ctx context.Context, topic string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM telemetry_log WHERE topic = ?",
		topic,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting telemetry records: %w", err)
	}
	return count, nil
}

// PruneBefore deletes records received before the cutoff.
func (r *SQLiteRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM telemetry_log WHERE received_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning telemetry log: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return removed, nil
}
