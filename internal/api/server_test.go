package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dosebox/dosebox-core/internal/catalog"
	"github.com/dosebox/dosebox-core/internal/infrastructure/config"
	"github.com/dosebox/dosebox-core/internal/infrastructure/logging"
	"github.com/dosebox/dosebox-core/internal/organizer"
	"github.com/dosebox/dosebox-core/internal/telemetry"
)

// fakePublisher records published commands and optionally fails.
type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishCommand(topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, topic)
	return nil
}

// testServer wires a full API server over an in-memory database.
type testServer struct {
	server    *Server
	handler   http.Handler
	publisher *fakePublisher
	times     catalog.Repository
	telemetry telemetry.Repository
	db        *sql.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE times_of_day (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			time TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

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

		CREATE TABLE telemetry_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			topic TEXT NOT NULL,
			payload TEXT NOT NULL,
			received_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	logger := logging.Default()
	times := catalog.NewSQLiteRepository(db)
	orgs := organizer.NewSQLiteRepository(db)
	telem := telemetry.NewSQLiteRepository(db)
	pub := &fakePublisher{}
	svc := organizer.NewService(orgs, times, pub, nil, logger)

	server, err := New(Deps{
		Config:     config.APIConfig{},
		Fleet:      config.OrganizersConfig{DefaultColumns: 4, MaxColumns: 8},
		Logger:     logger,
		Times:      times,
		Organizers: orgs,
		Service:    svc,
		Telemetry:  telem,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testServer{
		server:    server,
		handler:   server.buildRouter(),
		publisher: pub,
		times:     times,
		telemetry: telem,
		db:        db,
	}
}

// do runs one request through the router and returns the recorder.
func (ts *testServer) do(t *testing.T, method, path, principal string, body any, headers ...[2]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if principal != "" {
		req.Header.Set("X-Principal", principal)
	}
	for _, h := range headers {
		req.Header.Set(h[0], h[1])
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded JSON response body.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

// seedTime inserts a catalog entry and returns its id.
func (ts *testServer) seedTime(t *testing.T, name, clock string) int64 {
	t.Helper()
	entry := &catalog.TimeOfDay{Name: name, Time: clock}
	if err := ts.times.Create(context.Background(), entry); err != nil {
		t.Fatalf("seeding time: %v", err)
	}
	return entry.ID
}

// seedOrganizer registers a 4-column organizer owned by "alice".
func (ts *testServer) seedOrganizer(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/organizers", "alice", organizerRequest{
		SerialNumber: "SN-" + t.Name(),
		Name:         "Kitchen dispenser",
		Columns:      4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seeding organizer: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[organizer.Organizer](t, rec).ID
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("health body = %v", body)
	}
}

func TestTimesEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("create and list", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/times", "", timeRequest{Name: "Morning", Time: "08:00"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
		}

		rec = ts.do(t, http.MethodGet, "/api/v1/times", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list status = %d", rec.Code)
		}
		entries := decode[[]catalog.TimeOfDay](t, rec)
		if len(entries) != 1 || entries[0].Name != "Morning" {
			t.Errorf("list = %+v", entries)
		}
	})

	t.Run("invalid time is 422", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/times", "", timeRequest{Name: "Bad", Time: "25:00"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("non-numeric id is 400", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/times/morning", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing id is 404", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/times/9999", "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestOrganizerEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.seedOrganizer(t)

	t.Run("owner reads back", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/organizers/"+id, "alice", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		org := decode[organizer.Organizer](t, rec)
		if org.Owner != "alice" || org.Columns != 4 {
			t.Errorf("organizer = %+v", org)
		}
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/organizers/"+id, "mallory", nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("serial lookup", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/organizers/"+id, "alice", nil)
		serial := decode[organizer.Organizer](t, rec).SerialNumber

		rec = ts.do(t, http.MethodGet, "/api/v1/organizers/serial/"+serial, "alice", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
		}
		if got := decode[organizer.Organizer](t, rec); got.ID != id {
			t.Errorf("serial lookup ID = %s, want %s", got.ID, id)
		}

		rec = ts.do(t, http.MethodGet, "/api/v1/organizers/serial/"+serial, "mallory", nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("stranger status = %d, want 403", rec.Code)
		}

		rec = ts.do(t, http.MethodGet, "/api/v1/organizers/serial/SN-NO-SUCH", "alice", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("missing serial status = %d, want 404", rec.Code)
		}
	})

	t.Run("share grants access", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/organizers/"+id+"/shares", "alice", shareRequest{Principal: "bob"})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("share status = %d body %s", rec.Code, rec.Body.String())
		}

		rec = ts.do(t, http.MethodGet, "/api/v1/organizers/"+id, "bob", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("shared read status = %d, want 200", rec.Code)
		}

		// Listing scoped by principal
		rec = ts.do(t, http.MethodGet, "/api/v1/organizers", "bob", nil)
		if got := decode[[]organizer.Organizer](t, rec); len(got) != 1 {
			t.Errorf("bob sees %d organizers, want 1", len(got))
		}
		rec = ts.do(t, http.MethodGet, "/api/v1/organizers", "mallory", nil)
		if got := decode[[]organizer.Organizer](t, rec); len(got) != 0 {
			t.Errorf("mallory sees %d organizers, want 0", len(got))
		}
	})

	t.Run("profile share covers all owned organizers", func(t *testing.T) {
		second := ts.do(t, http.MethodPost, "/api/v1/organizers", "alice", organizerRequest{
			SerialNumber: "SN-second-" + t.Name(), Name: "Bedroom dispenser", Columns: 4,
		})
		if second.Code != http.StatusCreated {
			t.Fatalf("second create status = %d", second.Code)
		}

		rec := ts.do(t, http.MethodPost, "/api/v1/organizers/shares", "alice", shareRequest{Principal: "carol"})
		if rec.Code != http.StatusOK {
			t.Fatalf("profile share status = %d body %s", rec.Code, rec.Body.String())
		}
		if body := decode[map[string]int](t, rec); body["organizers_shared"] < 2 {
			t.Errorf("organizers_shared = %d, want at least 2", body["organizers_shared"])
		}

		rec = ts.do(t, http.MethodGet, "/api/v1/organizers", "carol", nil)
		if got := decode[[]organizer.Organizer](t, rec); len(got) < 2 {
			t.Errorf("carol sees %d organizers, want at least 2", len(got))
		}

		t.Run("requires a principal header", func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/organizers/shares", "", shareRequest{Principal: "carol"})
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	})

	t.Run("duplicate serial is 409", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/organizers", "alice", organizerRequest{
			SerialNumber: "SN-" + t.Name(), Name: "A", Columns: 4,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("first create status = %d", rec.Code)
		}
		rec = ts.do(t, http.MethodPost, "/api/v1/organizers", "alice", organizerRequest{
			SerialNumber: "SN-" + t.Name(), Name: "B", Columns: 4,
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("duplicate status = %d, want 409", rec.Code)
		}
	})

	t.Run("column count defaulted and capped", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/organizers", "alice", organizerRequest{
			SerialNumber: "SN-default-" + t.Name(), Name: "Default",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
		}
		if org := decode[organizer.Organizer](t, rec); org.Columns != 4 {
			t.Errorf("defaulted columns = %d, want 4", org.Columns)
		}

		rec = ts.do(t, http.MethodPost, "/api/v1/organizers", "alice", organizerRequest{
			SerialNumber: "SN-big-" + t.Name(), Name: "Big", Columns: 64,
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("oversized columns status = %d, want 422", rec.Code)
		}
	})

	t.Run("missing organizer is 404", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/organizers/no-such-id", "alice", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestColumnEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.seedOrganizer(t)
	morning := ts.seedTime(t, "Morning", "08:00")

	columnPath := func(index string) string {
		return fmt.Sprintf("/api/v1/organizers/%s/columns/%s", id, index)
	}

	t.Run("put compiles persists publishes", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, columnPath("1"), "alice", columnRequest{
			MedicineName: "Aspirin",
			TimeIDs:      []int64{morning},
			DayCodes:     []string{"mon", "wed"},
			SoundEnabled: true,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
		}

		slot := decode[organizer.ColumnSlot](t, rec)
		if slot.Version != 1 || slot.Payload == nil {
			t.Errorf("slot = %+v", slot)
		}
		if got := rec.Header().Get("ETag"); got != "1" {
			t.Errorf("ETag = %q, want 1", got)
		}
		if len(ts.publisher.published) != 1 || ts.publisher.published[0] != "update/"+id {
			t.Errorf("published = %v", ts.publisher.published)
		}
	})

	t.Run("unknown time is 422", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, columnPath("1"), "alice", columnRequest{
			MedicineName: "Aspirin",
			TimeIDs:      []int64{9999},
			DayCodes:     []string{"mon"},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("bad day code is 422", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, columnPath("1"), "alice", columnRequest{
			MedicineName: "Aspirin",
			TimeIDs:      []int64{morning},
			DayCodes:     []string{"monday"},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("out-of-range column is 422", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, columnPath("9"), "alice", columnRequest{
			MedicineName: "Aspirin",
			TimeIDs:      []int64{morning},
			DayCodes:     []string{"mon"},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("non-numeric column is 400", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, columnPath("one"), "alice", columnRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("stale If-Match is 409", func(t *testing.T) {
		body := columnRequest{
			MedicineName: "Aspirin",
			TimeIDs:      []int64{morning},
			DayCodes:     []string{"mon"},
		}
		rec := ts.do(t, http.MethodPut, columnPath("2"), "alice", body, [2]string{"If-Match", "0"})
		if rec.Code != http.StatusOK {
			t.Fatalf("conditional create status = %d body %s", rec.Code, rec.Body.String())
		}

		rec = ts.do(t, http.MethodPut, columnPath("2"), "alice", body, [2]string{"If-Match", "0"})
		if rec.Code != http.StatusConflict {
			t.Errorf("stale write status = %d, want 409", rec.Code)
		}

		rec = ts.do(t, http.MethodPut, columnPath("2"), "alice", body, [2]string{"If-Match", "1"})
		if rec.Code != http.StatusOK {
			t.Errorf("current-version write status = %d, want 200", rec.Code)
		}
	})

	t.Run("publish failure is 502", func(t *testing.T) {
		ts.publisher.err = errors.New("broker down")
		defer func() { ts.publisher.err = nil }()

		rec := ts.do(t, http.MethodPut, columnPath("3"), "alice", columnRequest{
			MedicineName: "Aspirin",
			TimeIDs:      []int64{morning},
			DayCodes:     []string{"mon"},
		})
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("clear publishes disabled payload", func(t *testing.T) {
		before := len(ts.publisher.published)
		rec := ts.do(t, http.MethodDelete, columnPath("1"), "alice", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
		}
		if len(ts.publisher.published) != before+1 {
			t.Errorf("clear did not publish a command")
		}

		rec = ts.do(t, http.MethodGet, columnPath("1"), "alice", nil)
		slot := decode[organizer.ColumnSlot](t, rec)
		if slot.Payload != nil || slot.Version != 0 {
			t.Errorf("cleared slot = %+v", slot)
		}
	})

	t.Run("stranger cannot write", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, columnPath("1"), "mallory", columnRequest{
			MedicineName: "Aspirin",
			TimeIDs:      []int64{morning},
			DayCodes:     []string{"mon"},
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestTelemetryEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	for _, payload := range []string{"T1", "T2", "T3"} {
		if _, err := ts.telemetry.Append(ctx, "status/42", []byte(payload)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/telemetry?topic=status/42", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		records := decode[[]telemetry.Record](t, rec)
		if len(records) != 3 || records[0].Payload != "T3" {
			t.Errorf("records = %+v, want T3 first", records)
		}
	})

	t.Run("limit", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/telemetry?topic=status/42&limit=1", "", nil)
		records := decode[[]telemetry.Record](t, rec)
		if len(records) != 1 || records[0].Payload != "T3" {
			t.Errorf("records = %+v, want just T3", records)
		}
	})

	t.Run("missing topic is 400", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/telemetry", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("bad limit is 400", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/telemetry?topic=status/42&limit=-1", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}
