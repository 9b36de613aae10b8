package organizer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for organizers and their column slots.
type Repository interface {
	// Create registers a new organizer and assigns its ID.
	// Returns ErrExists if the serial number is already registered.
	Create(ctx context.Context, org *Organizer) error

	// GetByID retrieves an organizer including its shared principals.
	// Returns ErrNotFound if the organizer does not exist.
	GetByID(ctx context.Context, id string) (*Organizer, error)

	// GetBySerial retrieves an organizer by serial number.
	// Returns ErrNotFound if no organizer carries the serial.
	GetBySerial(ctx context.Context, serial string) (*Organizer, error)

	// List retrieves all organizers.
	List(ctx context.Context) ([]Organizer, error)

	// ListByPrincipal retrieves organizers the principal owns or has been
	// granted access to.
	ListByPrincipal(ctx context.Context, principal string) ([]Organizer, error)

	// Update modifies an organizer's name.
	// Returns ErrNotFound if the organizer does not exist.
	Update(ctx context.Context, org *Organizer) error

	// Delete removes an organizer. Shares and column slots cascade.
	// Returns ErrNotFound if the organizer does not exist.
	Delete(ctx context.Context, id string) error

	// Share grants a principal access to an organizer. Idempotent.
	Share(ctx context.Context, id, principal string) error

	// Unshare revokes a principal's access. Idempotent.
	Unshare(ctx context.Context, id, principal string) error

	// ShareAllOwnedBy grants a principal access to every organizer the
	// owner owns. Returns the number of organizers newly shared;
	// organizers already shared with the principal are skipped.
	ShareAllOwnedBy(ctx context.Context, owner, principal string) (int, error)

	// GetColumn retrieves one column slot. A slot that has never been
	// written returns with nil Payload and Version 0, not an error.
	GetColumn(ctx context.Context, id string, index int) (*ColumnSlot, error)

	// GetColumns retrieves all written column slots, ordered by index.
	GetColumns(ctx context.Context, id string) ([]ColumnSlot, error)

	// SetColumn writes a compiled payload to a slot, incrementing its
	// version. Concurrent writers race last-write-wins; both succeed.
	SetColumn(ctx context.Context, id string, index int, payload *Payload) (*ColumnSlot, error)

	// SetColumnIf writes a payload only when the slot's current version
	// matches expected (0 for a never-written slot). Returns
	// ErrVersionConflict when it does not.
	SetColumnIf(ctx context.Context, id string, index int, payload *Payload, expected int64) (*ColumnSlot, error)

	// ClearColumn empties a slot. Clearing an already-empty slot is a no-op.
	ClearColumn(ctx context.Context, id string, index int) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create registers a new organizer and assigns its ID.
func (r *SQLiteRepository) Create(ctx context.Context, org *Organizer) error {
	if strings.TrimSpace(org.SerialNumber) == "" {
		return ErrInvalidSerial
	}
	if strings.TrimSpace(org.Name) == "" {
		return ErrInvalidName
	}
	if org.Columns < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidColumnCount, org.Columns)
	}

	org.ID = uuid.New().String()
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizers (id, serial_number, name, owner, columns, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.SerialNumber,
		org.Name,
		org.Owner,
		org.Columns,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrExists, org.SerialNumber)
		}
		return fmt.Errorf("inserting organizer: %w", err)
	}
	return nil
}

// GetByID retrieves an organizer including its shared principals.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Organizer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, serial_number, name, owner, columns, created_at, updated_at
		 FROM organizers WHERE id = ?`,
		id,
	)

	org, err := scanOrganizer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying organizer: %w", err)
	}

	if err := r.loadShares(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// GetBySerial retrieves an organizer by serial number.
func (r *SQLiteRepository) GetBySerial(ctx context.Context, serial string) (*Organizer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, serial_number, name, owner, columns, created_at, updated_at
		 FROM organizers WHERE serial_number = ?`,
		serial,
	)

	org, err := scanOrganizer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying organizer by serial: %w", err)
	}

	if err := r.loadShares(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// List retrieves all organizers.
func (r *SQLiteRepository) List(ctx context.Context) ([]Organizer, error) {
	return r.queryOrganizers(ctx,
		`SELECT id, serial_number, name, owner, columns, created_at, updated_at
		 FROM organizers ORDER BY created_at, id`,
	)
}

// ListByPrincipal retrieves organizers the principal owns or is shared on.
func (r *SQLiteRepository) ListByPrincipal(ctx context.Context, principal string) ([]Organizer, error) {
	return r.queryOrganizers(ctx,
		`SELECT o.id, o.serial_number, o.name, o.owner, o.columns, o.created_at, o.updated_at
		 FROM organizers o
		 LEFT JOIN organizer_shares s ON s.organizer_id = o.id
		 WHERE o.owner = ? OR s.principal = ?
		 GROUP BY o.id
		 ORDER BY o.created_at, o.id`,
		principal, principal,
	)
}

// Update modifies an organizer's name.
func (r *SQLiteRepository) Update(ctx context.Context, org *Organizer) error {
	if strings.TrimSpace(org.Name) == "" {
		return ErrInvalidName
	}

	org.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		"UPDATE organizers SET name = ?, updated_at = ? WHERE id = ?",
		org.Name,
		org.UpdatedAt.Format(time.RFC3339),
		org.ID,
	)
	if err != nil {
		return fmt.Errorf("updating organizer: %w", err)
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

// Delete removes an organizer. Shares and column slots cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM organizers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting organizer: %w", err)
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

// Share grants a principal access to an organizer.
func (r *SQLiteRepository) Share(ctx context.Context, id, principal string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizer_shares (organizer_id, principal) VALUES (?, ?)
		 ON CONFLICT(organizer_id, principal) DO NOTHING`,
		id, principal,
	)
	if err != nil {
		return fmt.Errorf("sharing organizer: %w", err)
	}
	return nil
}

// Unshare revokes a principal's access.
func (r *SQLiteRepository) Unshare(ctx context.Context, id, principal string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM organizer_shares WHERE organizer_id = ? AND principal = ?",
		id, principal,
	)
	if err != nil {
		return fmt.Errorf("unsharing organizer: %w", err)
	}
	return nil
}

// ShareAllOwnedBy grants a principal access to every organizer the owner
// owns. Sharing an owner's organizers with the owner is a no-op.
func (r *SQLiteRepository) ShareAllOwnedBy(ctx context.Context, owner, principal string) (int, error) {
	if owner == principal {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO organizer_shares (organizer_id, principal)
		 SELECT id, ? FROM organizers WHERE owner = ?
		 ON CONFLICT(organizer_id, principal) DO NOTHING`,
		principal, owner,
	)
	if err != nil {
		return 0, fmt.Errorf("sharing organizers: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return int(affected), nil
}

// GetColumn retrieves one column slot.
func (r *SQLiteRepository) GetColumn(ctx context.Context, id string, index int) (*ColumnSlot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT column_index, payload, version, updated_at
		 FROM organizer_columns WHERE organizer_id = ? AND column_index = ?`,
		id, index,
	)

	slot, err := scanColumnSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Never written: empty slot, not an error
			return &ColumnSlot{Index: index}, nil
		}
		return nil, fmt.Errorf("querying column slot: %w", err)
	}
	return slot, nil
}

// GetColumns retrieves all written column slots, ordered by index.
func (r *SQLiteRepository) GetColumns(ctx context.Context, id string) ([]ColumnSlot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT column_index, payload, version, updated_at
		 FROM organizer_columns WHERE organizer_id = ? ORDER BY column_index`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying column slots: %w", err)
	}
	defer rows.Close()

	var slots []ColumnSlot
	for rows.Next() {
		slot, err := scanColumnSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning column slot: %w", err)
		}
		slots = append(slots, *slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column slots: %w", err)
	}
	return slots, nil
}

// SetColumn writes a compiled payload to a slot, incrementing its version.
//
// The write is an atomic upsert: concurrent submissions to the same slot
// both succeed and the later one's payload remains, with the version
// counter advancing once per write.
func (r *SQLiteRepository) SetColumn(ctx context.Context, id string, index int, payload *Payload) (*ColumnSlot, error) {
	data, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO organizer_columns (organizer_id, column_index, payload, version, updated_at)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(organizer_id, column_index) DO UPDATE SET
		   payload = excluded.payload,
		   version = organizer_columns.version + 1,
		   updated_at = excluded.updated_at`,
		id, index, string(data), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	return r.GetColumn(ctx, id, index)
}

// SetColumnIf writes a payload only when the slot's current version matches
// expected. A never-written slot has version 0.
func (r *SQLiteRepository) SetColumnIf(ctx context.Context, id string, index int, payload *Payload, expected int64) (*ColumnSlot, error) {
	data, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	now := time.Now().UTC()

	var result sql.Result
	if expected == 0 {
		// Expecting an empty slot: the insert itself is the version check,
		// a conflicting row means someone wrote first.
		result, err = r.db.ExecContext(ctx,
			`INSERT INTO organizer_columns (organizer_id, column_index, payload, version, updated_at)
			 VALUES (?, ?, ?, 1, ?)
			 ON CONFLICT(organizer_id, column_index) DO NOTHING`,
			id, index, string(data), now.Format(time.RFC3339),
		)
	} else {
		result, err = r.db.ExecContext(ctx,
			`UPDATE organizer_columns SET payload = ?, version = version + 1, updated_at = ?
			 WHERE organizer_id = ? AND column_index = ? AND version = ?`,
			string(data), now.Format(time.RFC3339), id, index, expected,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: expected version %d", ErrVersionConflict, expected)
	}

	return r.GetColumn(ctx, id, index)
}

// ClearColumn empties a slot.
func (r *SQLiteRepository) ClearColumn(ctx context.Context, id string, index int) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM organizer_columns WHERE organizer_id = ? AND column_index = ?",
		id, index,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

// queryOrganizers runs a multi-row organizer query and loads shares for each.
func (r *SQLiteRepository) queryOrganizers(ctx context.Context, query string, args ...any) ([]Organizer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying organizers: %w", err)
	}
	defer rows.Close()

	var orgs []Organizer
	for rows.Next() {
		org, err := scanOrganizer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning organizer: %w", err)
		}
		orgs = append(orgs, *org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating organizers: %w", err)
	}

	for i := range orgs {
		if err := r.loadShares(ctx, &orgs[i]); err != nil {
			return nil, err
		}
	}
	return orgs, nil
}

// loadShares populates org.SharedUsers.
func (r *SQLiteRepository) loadShares(ctx context.Context, org *Organizer) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT principal FROM organizer_shares WHERE organizer_id = ? ORDER BY principal",
		org.ID,
	)
	if err != nil {
		return fmt.Errorf("querying shares: %w", err)
	}
	defer rows.Close()

	org.SharedUsers = []string{}
	for rows.Next() {
		var principal string
		if err := rows.Scan(&principal); err != nil {
			return fmt.Errorf("scanning share: %w", err)
		}
		org.SharedUsers = append(org.SharedUsers, principal)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating shares: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanOrganizer scans an organizer row (without shares).
func scanOrganizer(row rowScanner) (*Organizer, error) {
	var org Organizer
	var createdAt, updatedAt string

	if err := row.Scan(&org.ID, &org.SerialNumber, &org.Name, &org.Owner,
		&org.Columns, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	org.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	org.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &org, nil
}

// scanColumnSlot scans a column slot row.
func scanColumnSlot(row rowScanner) (*ColumnSlot, error) {
	var slot ColumnSlot
	var payload, updatedAt string

	if err := row.Scan(&slot.Index, &payload, &slot.Version, &updatedAt); err != nil {
		return nil, err
	}

	decoded, err := DecodePayload([]byte(payload))
	if err != nil {
		return nil, err
	}
	slot.Payload = decoded

	slot.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &slot, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
