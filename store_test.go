package roster

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(entityType EntityType, id string, payload string) *Record {
	return &Record{
		EntityType: entityType,
		ID:         id,
		Payload:    []byte(payload),
	}
}

// TestNewStore_CreatesAllTables verifies that migrations create the schema.
func TestNewStore_CreatesAllTables(t *testing.T) {
	store := newTestStore(t)

	tables := []string{"records", "dirty", "metadata", "snapshots"}
	for _, table := range tables {
		var name string
		err := store.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

// TestNewStore_EnablesWAL verifies that WAL mode is enabled after initialization.
func TestNewStore_EnablesWAL(t *testing.T) {
	store := newTestStore(t)

	var journalMode string
	if err := store.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected journal_mode=wal, got %q", journalMode)
	}
}

// TestNewStore_SetsSchemaVersion verifies that schema_version is recorded.
func TestNewStore_SetsSchemaVersion(t *testing.T) {
	store := newTestStore(t)

	value, err := store.GetMeta("schema_version")
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if value != schemaVersion {
		t.Errorf("expected schema_version=%q, got %q", schemaVersion, value)
	}
}

// TestSaveLocal_AssignsTimestampAndMarksDirty verifies the basic local
// mutation path.
func TestSaveLocal_AssignsTimestampAndMarksDirty(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord(EntityProject, "p1", `{"name":"svc"}`)
	if err := store.SaveLocal(rec); err != nil {
		t.Fatalf("SaveLocal failed: %v", err)
	}
	if rec.UpdatedAt.IsZero() {
		t.Error("SaveLocal should assign updated_at")
	}

	dirty, _, err := store.IsDirty(EntityProject, "p1")
	if err != nil {
		t.Fatalf("IsDirty failed: %v", err)
	}
	if !dirty {
		t.Error("record should be dirty after local save")
	}

	got, err := store.GetRecord(EntityProject, "p1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if string(got.Payload) != `{"name":"svc"}` {
		t.Errorf("payload roundtrip failed: %s", got.Payload)
	}
	if !got.UpdatedAt.Equal(rec.UpdatedAt) {
		t.Errorf("stored timestamp %v != assigned %v", got.UpdatedAt, rec.UpdatedAt)
	}
}

// TestSaveLocal_MonotonicTimestamps verifies that successive edits to the
// same identity always move updated_at forward.
func TestSaveLocal_MonotonicTimestamps(t *testing.T) {
	store := newTestStore(t)

	var prev time.Time
	for i := 0; i < 5; i++ {
		rec := testRecord(EntityProject, "p1", `{"name":"svc"}`)
		if err := store.SaveLocal(rec); err != nil {
			t.Fatalf("SaveLocal failed: %v", err)
		}
		if !rec.UpdatedAt.After(prev) {
			t.Fatalf("edit %d: timestamp %v did not advance past %v", i, rec.UpdatedAt, prev)
		}
		prev = rec.UpdatedAt
	}
}

// TestSaveLocal_RejectsUnknownEntityType verifies entity type validation.
func TestSaveLocal_RejectsUnknownEntityType(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveLocal(testRecord("widget", "w1", `{}`))
	if !errors.Is(err, ErrInvalidEntityType) {
		t.Errorf("expected ErrInvalidEntityType, got %v", err)
	}
}

// TestDirty_Idempotent verifies that repeated edits collapse to a single
// dirty entry carrying the latest timestamp.
func TestDirty_Idempotent(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord(EntityProject, "p1", `{"name":"a"}`)
	if err := store.SaveLocal(rec); err != nil {
		t.Fatalf("SaveLocal failed: %v", err)
	}
	rec2 := testRecord(EntityProject, "p1", `{"name":"b"}`)
	if err := store.SaveLocal(rec2); err != nil {
		t.Fatalf("SaveLocal failed: %v", err)
	}

	entries, err := store.ListDirty("")
	if err != nil {
		t.Fatalf("ListDirty failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 dirty entry, got %d", len(entries))
	}
	if !entries[0].UpdatedAt.Equal(rec2.UpdatedAt) {
		t.Errorf("dirty entry should carry the latest timestamp")
	}
}

// TestClearDirty_Guard verifies that a dirty entry re-dirtied during a
// push round trip survives a clear at the older confirmation timestamp.
func TestClearDirty_Guard(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord(EntityProject, "p1", `{"name":"a"}`)
	if err := store.SaveLocal(rec); err != nil {
		t.Fatalf("SaveLocal failed: %v", err)
	}
	firstPushTS := rec.UpdatedAt

	// Concurrent local edit while the push is in flight.
	rec2 := testRecord(EntityProject, "p1", `{"name":"b"}`)
	if err := store.SaveLocal(rec2); err != nil {
		t.Fatalf("SaveLocal failed: %v", err)
	}

	// Server confirms the first edit; the newer pending edit must survive.
	if err := store.ClearDirty(EntityProject, "p1", firstPushTS); err != nil {
		t.Fatalf("ClearDirty failed: %v", err)
	}
	dirty, at, err := store.IsDirty(EntityProject, "p1")
	if err != nil {
		t.Fatalf("IsDirty failed: %v", err)
	}
	if !dirty {
		t.Fatal("newer pending edit should still be dirty")
	}
	if !at.Equal(rec2.UpdatedAt) {
		t.Errorf("surviving entry should carry the newer timestamp")
	}

	// Confirming at the newer timestamp clears it.
	if err := store.ClearDirty(EntityProject, "p1", rec2.UpdatedAt); err != nil {
		t.Fatalf("ClearDirty failed: %v", err)
	}
	dirty, _, _ = store.IsDirty(EntityProject, "p1")
	if dirty {
		t.Error("entry should be cleared at its own timestamp")
	}
}

// TestDeleteLocal_WritesTombstone verifies soft deletion.
func TestDeleteLocal_WritesTombstone(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord(EntityProject, "p1", `{"name":"a"}`)
	if err := store.SaveLocal(rec); err != nil {
		t.Fatalf("SaveLocal failed: %v", err)
	}
	if err := store.DeleteLocal(EntityProject, "p1"); err != nil {
		t.Fatalf("DeleteLocal failed: %v", err)
	}

	got, err := store.GetRecord(EntityProject, "p1")
	if err != nil {
		t.Fatalf("tombstone should still be readable: %v", err)
	}
	if !got.Deleted {
		t.Error("record should be tombstoned")
	}
	if len(got.Payload) != 0 {
		t.Error("tombstone should carry no payload")
	}
	if !got.UpdatedAt.After(rec.UpdatedAt) {
		t.Error("tombstone should carry a newer timestamp")
	}

	live, err := store.ListRecords(EntityProject)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(live) != 0 {
		t.Errorf("tombstones should not appear in live listings, got %d", len(live))
	}
}

// TestDeleteLocal_NotFound verifies deleting a missing record.
func TestDeleteLocal_NotFound(t *testing.T) {
	store := newTestStore(t)

	if err := store.DeleteLocal(EntityProject, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestListModifiedSince_StrictlyAfter verifies the cursor boundary and
// ordering contract.
func TestListModifiedSince_StrictlyAfter(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := testRecord(EntityProject, id, `{}`)
		rec.UpdatedAt = base.Add(time.Duration(i) * time.Second)
		if _, err := store.UpsertRecord(rec); err != nil {
			t.Fatalf("UpsertRecord failed: %v", err)
		}
	}

	// since equal to "a"'s timestamp: only b and c qualify.
	got, err := store.ListModifiedSince("", base)
	if err != nil {
		t.Fatalf("ListModifiedSince failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("expected ascending order b,c; got %s,%s", got[0].ID, got[1].ID)
	}
}

// TestListModifiedSince_IncludesTombstones verifies that deletions flow
// through modified-since scans.
func TestListModifiedSince_IncludesTombstones(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord(EntityProject, "p1", `{}`)
	if err := store.SaveLocal(rec); err != nil {
		t.Fatalf("SaveLocal failed: %v", err)
	}
	if err := store.DeleteLocal(EntityProject, "p1"); err != nil {
		t.Fatalf("DeleteLocal failed: %v", err)
	}

	got, err := store.ListModifiedSince("", time.Time{})
	if err != nil {
		t.Fatalf("ListModifiedSince failed: %v", err)
	}
	if len(got) != 1 || !got[0].Deleted {
		t.Errorf("expected the tombstone in the scan, got %+v", got)
	}
}

// TestUpsertRecord_PreservesTimestamp verifies the apply path writes the
// envelope verbatim and leaves dirty state alone.
func TestUpsertRecord_PreservesTimestamp(t *testing.T) {
	store := newTestStore(t)

	at := time.Date(2026, 8, 10, 9, 30, 0, 123456789, time.UTC)
	rec := testRecord(EntityProject, "p1", `{}`)
	rec.UpdatedAt = at

	stored, err := store.UpsertRecord(rec)
	if err != nil {
		t.Fatalf("UpsertRecord failed: %v", err)
	}
	if !stored.Equal(at) {
		t.Errorf("stored timestamp %v != %v", stored, at)
	}

	dirty, _, err := store.IsDirty(EntityProject, "p1")
	if err != nil {
		t.Fatalf("IsDirty failed: %v", err)
	}
	if dirty {
		t.Error("apply path must not mark records dirty")
	}
}

// TestCursor_Monotonic verifies that cursors never move backwards.
func TestCursor_Monotonic(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Cursor(CursorAll)
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("fresh cursor should be zero, got %v", got)
	}

	t1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	if err := store.SetCursor(CursorAll, t2); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}
	// Attempt to regress.
	if err := store.SetCursor(CursorAll, t1); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}

	got, err = store.Cursor(CursorAll)
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if !got.Equal(t2) {
		t.Errorf("cursor regressed: got %v, want %v", got, t2)
	}
}

// TestCursor_ScopedIndependently verifies per-scope cursors.
func TestCursor_ScopedIndependently(t *testing.T) {
	store := newTestStore(t)

	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if err := store.SetCursor(string(EntityProject), at); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}

	other, err := store.Cursor(CursorAll)
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if !other.IsZero() {
		t.Errorf("unrelated scope should be untouched, got %v", other)
	}
}

// TestSnapshot_Roundtrip verifies snapshot caching for offline fallback.
func TestSnapshot_Roundtrip(t *testing.T) {
	store := newTestStore(t)

	if _, _, err := store.Snapshot("status"); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}

	at := time.Date(2026, 8, 15, 8, 0, 0, 0, time.UTC)
	if err := store.SaveSnapshot("status", []byte(`{"projects":3}`), at); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	data, capturedAt, err := store.Snapshot("status")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if string(data) != `{"projects":3}` {
		t.Errorf("snapshot data roundtrip failed: %s", data)
	}
	if !capturedAt.Equal(at) {
		t.Errorf("capture time %v != %v", capturedAt, at)
	}
}

// TestStatusSummary_CountsLiveRecords verifies per-type counting.
func TestStatusSummary_CountsLiveRecords(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"p1", "p2"} {
		if err := store.SaveLocal(testRecord(EntityProject, id, `{}`)); err != nil {
			t.Fatalf("SaveLocal failed: %v", err)
		}
	}
	if err := store.SaveLocal(testRecord(EntityManifestation, "m1", `{}`)); err != nil {
		t.Fatalf("SaveLocal failed: %v", err)
	}
	if err := store.DeleteLocal(EntityProject, "p2"); err != nil {
		t.Fatalf("DeleteLocal failed: %v", err)
	}

	view, err := store.StatusSummary()
	if err != nil {
		t.Fatalf("StatusSummary failed: %v", err)
	}
	if view.Projects != 1 {
		t.Errorf("expected 1 live project, got %d", view.Projects)
	}
	if view.Manifestations != 1 {
		t.Errorf("expected 1 manifestation, got %d", view.Manifestations)
	}
}

// TestStore_Closed verifies that operations after Close fail cleanly.
func TestStore_Closed(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := store.SaveLocal(testRecord(EntityProject, "p1", `{}`)); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("SaveLocal: expected ErrStoreClosed, got %v", err)
	}
	if _, err := store.GetRecord(EntityProject, "p1"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("GetRecord: expected ErrStoreClosed, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("double close should be a no-op, got %v", err)
	}
}
