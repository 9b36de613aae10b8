package organizer

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the organizer tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Concurrent slot writes in tests share one connection; the in-memory
	// database does not survive a second connection being opened.
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE organizers (
			id TEXT PRIMARY KEY,
			serial_number TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			owner TEXT NOT NULL,
			columns INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE organizer_shares (
			organizer_id TEXT NOT NULL REFERENCES organizers(id) ON DELETE CASCADE,
			principal TEXT NOT NULL,
			PRIMARY KEY (organizer_id, principal)
		) STRICT;

		CREATE TABLE organizer_columns (
			organizer_id TEXT NOT NULL REFERENCES organizers(id) ON DELETE CASCADE,
			column_index INTEGER NOT NULL,
			payload TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (organizer_id, column_index)
		) STRICT;
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestOrganizer registers a 4-column organizer owned by "alice".
func createTestOrganizer(t *testing.T, repo *SQLiteRepository) *Organizer {
	t.Helper()

	org := &Organizer{
		SerialNumber: "SN-" + t.Name(),
		Name:         "Kitchen dispenser",
		Owner:        "alice",
		Columns:      4,
	}
	if err := repo.Create(context.Background(), org); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return org
}

func TestSQLiteRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	t.Run("assigns id and timestamps", func(t *testing.T) {
		org := &Organizer{SerialNumber: "SN-001", Name: "Box", Owner: "alice", Columns: 4}
		if err := repo.Create(ctx, org); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if org.ID == "" {
			t.Error("Create() did not assign an ID")
		}
		if org.CreatedAt.IsZero() {
			t.Error("Create() did not set CreatedAt")
		}
	})

	t.Run("rejects duplicate serial", func(t *testing.T) {
		first := &Organizer{SerialNumber: "SN-DUP", Name: "A", Owner: "alice", Columns: 4}
		if err := repo.Create(ctx, first); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		second := &Organizer{SerialNumber: "SN-DUP", Name: "B", Owner: "bob", Columns: 4}
		if err := repo.Create(ctx, second); !errors.Is(err, ErrExists) {
			t.Errorf("Create() error = %v, want ErrExists", err)
		}
	})

	t.Run("rejects invalid fields", func(t *testing.T) {
		cases := []struct {
			org  Organizer
			want error
		}{
			{Organizer{SerialNumber: "", Name: "X", Owner: "a", Columns: 4}, ErrInvalidSerial},
			{Organizer{SerialNumber: "SN-X", Name: "", Owner: "a", Columns: 4}, ErrInvalidName},
			{Organizer{SerialNumber: "SN-Y", Name: "X", Owner: "a", Columns: 0}, ErrInvalidColumnCount},
		}
		for _, tc := range cases {
			org := tc.org
			if err := repo.Create(ctx, &org); !errors.Is(err, tc.want) {
				t.Errorf("Create(%+v) error = %v, want %v", tc.org, err, tc.want)
			}
		}
	})
}

func TestSQLiteRepository_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	org := createTestOrganizer(t, repo)

	got, err := repo.GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.SerialNumber != org.SerialNumber || got.Owner != "alice" || got.Columns != 4 {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.SharedUsers == nil {
		t.Error("GetByID() SharedUsers is nil, want empty slice")
	}

	if _, err := repo.GetByID(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_GetBySerial(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	org := createTestOrganizer(t, repo)

	got, err := repo.GetBySerial(ctx, org.SerialNumber)
	if err != nil {
		t.Fatalf("GetBySerial() error = %v", err)
	}
	if got.ID != org.ID {
		t.Errorf("GetBySerial() ID = %s, want %s", got.ID, org.ID)
	}
	if got.SharedUsers == nil {
		t.Error("GetBySerial() SharedUsers is nil, want empty slice")
	}

	if _, err := repo.GetBySerial(ctx, "SN-NO-SUCH"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBySerial(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_Sharing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	org := createTestOrganizer(t, repo)

	if err := repo.Share(ctx, org.ID, "bob"); err != nil {
		t.Fatalf("Share() error = %v", err)
	}
	// Sharing twice is a no-op
	if err := repo.Share(ctx, org.ID, "bob"); err != nil {
		t.Fatalf("Share() repeated error = %v", err)
	}

	got, err := repo.GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.SharedUsers) != 1 || got.SharedUsers[0] != "bob" {
		t.Errorf("SharedUsers = %v, want [bob]", got.SharedUsers)
	}
	if !got.AccessibleBy("bob") || !got.AccessibleBy("alice") {
		t.Error("expected both alice and bob to have access")
	}
	if got.AccessibleBy("mallory") {
		t.Error("mallory should not have access")
	}

	t.Run("list by principal", func(t *testing.T) {
		forBob, err := repo.ListByPrincipal(ctx, "bob")
		if err != nil {
			t.Fatalf("ListByPrincipal() error = %v", err)
		}
		if len(forBob) != 1 {
			t.Fatalf("ListByPrincipal(bob) returned %d organizers, want 1", len(forBob))
		}

		forMallory, err := repo.ListByPrincipal(ctx, "mallory")
		if err != nil {
			t.Fatalf("ListByPrincipal() error = %v", err)
		}
		if len(forMallory) != 0 {
			t.Errorf("ListByPrincipal(mallory) returned %d organizers, want 0", len(forMallory))
		}
	})

	t.Run("unshare", func(t *testing.T) {
		if err := repo.Unshare(ctx, org.ID, "bob"); err != nil {
			t.Fatalf("Unshare() error = %v", err)
		}
		got, err := repo.GetByID(ctx, org.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if len(got.SharedUsers) != 0 {
			t.Errorf("SharedUsers = %v after unshare, want empty", got.SharedUsers)
		}
	})
}

func TestSQLiteRepository_ShareAllOwnedBy(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	first := &Organizer{SerialNumber: "SN-P1", Name: "Kitchen", Owner: "alice", Columns: 4}
	second := &Organizer{SerialNumber: "SN-P2", Name: "Bedroom", Owner: "alice", Columns: 4}
	other := &Organizer{SerialNumber: "SN-P3", Name: "Office", Owner: "carol", Columns: 4}
	for _, org := range []*Organizer{first, second, other} {
		if err := repo.Create(ctx, org); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	// bob already has one of alice's organizers
	if err := repo.Share(ctx, first.ID, "bob"); err != nil {
		t.Fatalf("Share() error = %v", err)
	}

	n, err := repo.ShareAllOwnedBy(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("ShareAllOwnedBy() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ShareAllOwnedBy() = %d newly shared, want 1", n)
	}

	forBob, err := repo.ListByPrincipal(ctx, "bob")
	if err != nil {
		t.Fatalf("ListByPrincipal() error = %v", err)
	}
	if len(forBob) != 2 {
		t.Fatalf("ListByPrincipal(bob) returned %d organizers, want 2", len(forBob))
	}
	for _, org := range forBob {
		if org.Owner != "alice" {
			t.Errorf("bob gained access to %s owned by %s", org.SerialNumber, org.Owner)
		}
	}

	t.Run("sharing with the owner is a no-op", func(t *testing.T) {
		n, err := repo.ShareAllOwnedBy(ctx, "alice", "alice")
		if err != nil {
			t.Fatalf("ShareAllOwnedBy() error = %v", err)
		}
		if n != 0 {
			t.Errorf("ShareAllOwnedBy(alice, alice) = %d, want 0", n)
		}
	})

	t.Run("repeat is idempotent", func(t *testing.T) {
		n, err := repo.ShareAllOwnedBy(ctx, "alice", "bob")
		if err != nil {
			t.Fatalf("ShareAllOwnedBy() error = %v", err)
		}
		if n != 0 {
			t.Errorf("ShareAllOwnedBy() repeated = %d, want 0", n)
		}
	})
}

func TestSQLiteRepository_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	org := createTestOrganizer(t, repo)
	if err := repo.Share(ctx, org.ID, "bob"); err != nil {
		t.Fatalf("Share() error = %v", err)
	}
	if _, err := repo.SetColumn(ctx, org.ID, 1, &Payload{MedicineName: "Aspirin"}); err != nil {
		t.Fatalf("SetColumn() error = %v", err)
	}

	if err := repo.Delete(ctx, org.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := repo.GetByID(ctx, org.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM organizer_columns").Scan(&count); err != nil {
		t.Fatalf("counting columns: %v", err)
	}
	if count != 0 {
		t.Errorf("%d column rows remain after delete, want 0", count)
	}

	if err := repo.Delete(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_Columns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	org := createTestOrganizer(t, repo)

	t.Run("empty slot reads back clean", func(t *testing.T) {
		slot, err := repo.GetColumn(ctx, org.ID, 2)
		if err != nil {
			t.Fatalf("GetColumn() error = %v", err)
		}
		if slot.Payload != nil || slot.Version != 0 || slot.Index != 2 {
			t.Errorf("empty slot = %+v, want nil payload and version 0", slot)
		}
	})

	t.Run("write increments version", func(t *testing.T) {
		payload := &Payload{
			MedicineName:   "Aspirin",
			DispenseEvents: []DispenseEvent{{Time: "08:00", Days: []string{DayMon}}},
		}

		slot, err := repo.SetColumn(ctx, org.ID, 1, payload)
		if err != nil {
			t.Fatalf("SetColumn() error = %v", err)
		}
		if slot.Version != 1 {
			t.Errorf("first write version = %d, want 1", slot.Version)
		}

		payload.MedicineName = "Ibuprofen"
		slot, err = repo.SetColumn(ctx, org.ID, 1, payload)
		if err != nil {
			t.Fatalf("SetColumn() error = %v", err)
		}
		if slot.Version != 2 {
			t.Errorf("second write version = %d, want 2", slot.Version)
		}
		if slot.Payload.MedicineName != "Ibuprofen" {
			t.Errorf("payload = %q, want Ibuprofen", slot.Payload.MedicineName)
		}
	})

	t.Run("conditional write", func(t *testing.T) {
		payload := &Payload{MedicineName: "Statin"}

		// Slot 3 is empty: expected version 0 succeeds
		slot, err := repo.SetColumnIf(ctx, org.ID, 3, payload, 0)
		if err != nil {
			t.Fatalf("SetColumnIf(0) error = %v", err)
		}
		if slot.Version != 1 {
			t.Errorf("version = %d, want 1", slot.Version)
		}

		// Stale expectation fails
		if _, err := repo.SetColumnIf(ctx, org.ID, 3, payload, 0); !errors.Is(err, ErrVersionConflict) {
			t.Errorf("SetColumnIf(stale 0) error = %v, want ErrVersionConflict", err)
		}
		if _, err := repo.SetColumnIf(ctx, org.ID, 3, payload, 7); !errors.Is(err, ErrVersionConflict) {
			t.Errorf("SetColumnIf(stale 7) error = %v, want ErrVersionConflict", err)
		}

		// Current version succeeds
		slot, err = repo.SetColumnIf(ctx, org.ID, 3, payload, 1)
		if err != nil {
			t.Fatalf("SetColumnIf(1) error = %v", err)
		}
		if slot.Version != 2 {
			t.Errorf("version = %d, want 2", slot.Version)
		}
	})

	t.Run("clear", func(t *testing.T) {
		if _, err := repo.SetColumn(ctx, org.ID, 4, &Payload{MedicineName: "X"}); err != nil {
			t.Fatalf("SetColumn() error = %v", err)
		}
		if err := repo.ClearColumn(ctx, org.ID, 4); err != nil {
			t.Fatalf("ClearColumn() error = %v", err)
		}
		slot, err := repo.GetColumn(ctx, org.ID, 4)
		if err != nil {
			t.Fatalf("GetColumn() error = %v", err)
		}
		if slot.Payload != nil || slot.Version != 0 {
			t.Errorf("cleared slot = %+v, want empty", slot)
		}
		// Clearing again is a no-op
		if err := repo.ClearColumn(ctx, org.ID, 4); err != nil {
			t.Errorf("ClearColumn() repeated error = %v", err)
		}
	})

	t.Run("list written slots", func(t *testing.T) {
		slots, err := repo.GetColumns(ctx, org.ID)
		if err != nil {
			t.Fatalf("GetColumns() error = %v", err)
		}
		// Slots 1 and 3 were written above, 4 was cleared
		if len(slots) != 2 {
			t.Fatalf("GetColumns() returned %d slots, want 2", len(slots))
		}
		if slots[0].Index != 1 || slots[1].Index != 3 {
			t.Errorf("slot indexes = [%d %d], want [1 3]", slots[0].Index, slots[1].Index)
		}
	})
}

// Two submitters racing the same slot: both writes succeed, one payload
// remains, and the version counter reflects both.
func TestSQLiteRepository_ConcurrentColumnWrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	org := createTestOrganizer(t, repo)

	payloads := []*Payload{
		{MedicineName: "Aspirin", DispenseEvents: []DispenseEvent{{Time: "08:00", Days: []string{DayMon}}}},
		{MedicineName: "Ibuprofen", DispenseEvents: []DispenseEvent{{Time: "20:00", Days: []string{DayFri}}}},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(payloads))
	for i, p := range payloads {
		wg.Add(1)
		go func(i int, p *Payload) {
			defer wg.Done()
			_, errs[i] = repo.SetColumn(ctx, org.ID, 1, p)
		}(i, p)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("writer %d error = %v, want nil", i, err)
		}
	}

	slot, err := repo.GetColumn(ctx, org.ID, 1)
	if err != nil {
		t.Fatalf("GetColumn() error = %v", err)
	}
	if slot.Version != 2 {
		t.Errorf("version = %d after two writes, want 2", slot.Version)
	}
	if name := slot.Payload.MedicineName; name != "Aspirin" && name != "Ibuprofen" {
		t.Errorf("payload = %q, want one of the submitted payloads", name)
	}
}
