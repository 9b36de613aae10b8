package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for catalog persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an entry by id.
	// Returns ErrNotFound if the entry does not exist.
	GetByID(ctx context.Context, id int64) (*TimeOfDay, error)

	// List retrieves all entries ordered by wall-clock time.
	List(ctx context.Context) ([]TimeOfDay, error)

	// Map retrieves all entries keyed by id, for compiler lookups.
	Map(ctx context.Context) (map[int64]TimeOfDay, error)

	// Create inserts a new entry and assigns its ID.
	Create(ctx context.Context, entry *TimeOfDay) error

	// Update modifies an existing entry.
	// Returns ErrNotFound if the entry does not exist.
	Update(ctx context.Context, entry *TimeOfDay) error

	// Delete removes an entry by id.
	// Returns ErrNotFound if the entry does not exist.
	Delete(ctx context.Context, id int64) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an entry by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*TimeOfDay, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, time, created_at, updated_at FROM times_of_day WHERE id = ?",
		id,
	)

	entry, err := scanTimeOfDay(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying time of day by id: %w", err)
	}
	return entry, nil
}

// List retrieves all entries ordered by wall-clock time.
func (r *SQLiteRepository) List(ctx context.Context) ([]TimeOfDay, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, time, created_at, updated_at FROM times_of_day ORDER BY time, id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying times of day: %w", err)
	}
	defer rows.Close()

	var entries []TimeOfDay
	for rows.Next() {
		entry, err := scanTimeOfDay(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning time of day: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating times of day: %w", err)
	}
	return entries, nil
}

// Map retrieves all entries keyed by id, for compiler lookups.
func (r *SQLiteRepository) Map(ctx context.Context) (map[int64]TimeOfDay, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	m := make(map[int64]TimeOfDay, len(entries))
	for _, entry := range entries {
		m[entry.ID] = entry
	}
	return m, nil
}

// Create inserts a new entry and assigns its ID.
func (r *SQLiteRepository) Create(ctx context.Context, entry *TimeOfDay) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO times_of_day (name, time, created_at, updated_at) VALUES (?, ?, ?, ?)",
		entry.Name,
		entry.Time,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting time of day: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	entry.ID = id

	return nil
}

// Update modifies an existing entry.
func (r *SQLiteRepository) Update(ctx context.Context, entry *TimeOfDay) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	entry.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		"UPDATE times_of_day SET name = ?, time = ?, updated_at = ? WHERE id = ?",
		entry.Name,
		entry.Time,
		entry.UpdatedAt.Format(time.RFC3339),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("updating time of day: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an entry by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM times_of_day WHERE id = ?",
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting time of day: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTimeOfDay scans a catalog row into a TimeOfDay.
func scanTimeOfDay(row rowScanner) (*TimeOfDay, error) {
	var entry TimeOfDay
	var createdAt, updatedAt string

	if err := row.Scan(&entry.ID, &entry.Name, &entry.Time, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &entry, nil
}
