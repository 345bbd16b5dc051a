package roster

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hyperengineering/roster/internal/store/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// Cursor scope covering every entity type.
const CursorAll = "*"

// Store manages the local SQLite registry database. It implements the
// record-store contract consumed by the sync engine on both sides of the
// protocol: get-by-identity, upsert, and modified-since scans, plus the
// client-only dirty tracking and cursor bookkeeping.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewStore opens or creates a local registry store.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, schemaVersion)
	return err
}

// SaveLocal records a local mutation: it assigns a fresh updated_at,
// writes the record, and marks it dirty in one transaction. The assigned
// timestamp never goes backwards for an identity, even under wall-clock
// regression.
func (s *Store) SaveLocal(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if !rec.EntityType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntityType, rec.EntityType)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	now := time.Now().UTC()
	var prevNanos sql.NullInt64
	err = tx.QueryRow(`
		SELECT updated_at FROM records WHERE entity_type = ? AND id = ?
	`, string(rec.EntityType), rec.ID).Scan(&prevNanos)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("store: read previous timestamp: %w", err)
	}
	if prevNanos.Valid && prevNanos.Int64 >= now.UnixNano() {
		now = time.Unix(0, prevNanos.Int64+1).UTC()
	}
	rec.UpdatedAt = now

	if err := upsertRecordTx(tx, rec); err != nil {
		return err
	}

	// Dirty marking is idempotent: a second local edit before a push
	// collapses to one entry carrying the latest timestamp.
	_, err = tx.Exec(`
		INSERT INTO dirty (entity_type, id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (entity_type, id) DO UPDATE SET updated_at = excluded.updated_at
	`, string(rec.EntityType), rec.ID, rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store: mark dirty: %w", err)
	}

	return tx.Commit()
}

// DeleteLocal writes a tombstone for the record. The deletion propagates
// through sync like any other mutation; the row is not physically removed.
func (s *Store) DeleteLocal(entityType EntityType, id string) error {
	rec, err := s.GetRecord(entityType, id)
	if err != nil {
		return err
	}
	rec.Payload = nil
	rec.ContentHash = ""
	rec.Deleted = true
	return s.SaveLocal(rec)
}

// GetRecord retrieves a record by identity. Tombstones are returned;
// callers that only want live records check Deleted themselves.
func (s *Store) GetRecord(entityType EntityType, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	row := s.db.QueryRow(`
		SELECT entity_type, id, payload, content_hash, updated_at, deleted
		FROM records WHERE entity_type = ? AND id = ?
	`, string(entityType), id)

	return scanRecord(row)
}

// UpsertRecord writes the record envelope verbatim, including its
// updated_at, and returns the stored timestamp. This is the apply path
// for records arriving from the other side of a sync; it never touches
// dirty state.
func (s *Store) UpsertRecord(rec *Record) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return time.Time{}, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return time.Time{}, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertRecordTx(tx, rec); err != nil {
		return time.Time{}, err
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, err
	}
	return rec.UpdatedAt, nil
}

func upsertRecordTx(tx *sql.Tx, rec *Record) error {
	var payload *string
	if len(rec.Payload) > 0 {
		p := string(rec.Payload)
		payload = &p
	}

	_, err := tx.Exec(`
		INSERT INTO records (entity_type, id, payload, content_hash, updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, id) DO UPDATE SET
			payload = excluded.payload,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted
	`,
		string(rec.EntityType),
		rec.ID,
		payload,
		rec.ContentHash,
		rec.UpdatedAt.UnixNano(),
		boolToInt(rec.Deleted),
	)
	if err != nil {
		return fmt.Errorf("store: upsert record: %w", err)
	}
	return nil
}

// ListRecords returns all live (non-tombstone) records of the given type.
func (s *Store) ListRecords(entityType EntityType) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT entity_type, id, payload, content_hash, updated_at, deleted
		FROM records
		WHERE entity_type = ? AND deleted = 0
		ORDER BY updated_at ASC, id ASC
	`, string(entityType))
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListModifiedSince returns every record, tombstones included, with
// updated_at strictly greater than since, ordered by updated_at ascending
// so ties are applied deterministically. An empty entityType scans all
// entity types.
func (s *Store) ListModifiedSince(entityType EntityType, since time.Time) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT entity_type, id, payload, content_hash, updated_at, deleted
		FROM records WHERE updated_at > ?
	`
	args := []any{since.UnixNano()}

	if entityType != "" {
		query += " AND entity_type = ?"
		args = append(args, string(entityType))
	}
	query += " ORDER BY updated_at ASC, entity_type ASC, id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list modified: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// MarkDirty records that the identity has unpushed local changes.
// Marking the same identity twice collapses to one entry carrying the
// latest updated_at.
func (s *Store) MarkDirty(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO dirty (entity_type, id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (entity_type, id) DO UPDATE SET updated_at = excluded.updated_at
	`, string(rec.EntityType), rec.ID, rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store: mark dirty: %w", err)
	}
	return nil
}

// ListDirty returns dirty entries awaiting push, oldest first.
// An empty entityType lists all types.
func (s *Store) ListDirty(entityType EntityType) ([]DirtyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `SELECT entity_type, id, updated_at FROM dirty`
	args := []any{}
	if entityType != "" {
		query += " WHERE entity_type = ?"
		args = append(args, string(entityType))
	}
	query += " ORDER BY updated_at ASC, entity_type ASC, id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list dirty: %w", err)
	}
	defer rows.Close()

	var entries []DirtyEntry
	for rows.Next() {
		var (
			et    string
			id    string
			nanos int64
		)
		if err := rows.Scan(&et, &id, &nanos); err != nil {
			return nil, err
		}
		entries = append(entries, DirtyEntry{
			EntityType: EntityType(et),
			ID:         id,
			UpdatedAt:  time.Unix(0, nanos).UTC(),
		})
	}
	return entries, rows.Err()
}

// ClearDirty removes the dirty entry only if the server confirmed the
// record at or above the entry's timestamp. An entry re-dirtied by a
// local edit during the push round-trip survives, so the newer edit is
// pushed in the next cycle.
func (s *Store) ClearDirty(entityType EntityType, id string, confirmedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		DELETE FROM dirty WHERE entity_type = ? AND id = ? AND updated_at <= ?
	`, string(entityType), id, confirmedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store: clear dirty: %w", err)
	}
	return nil
}

// IsDirty reports whether the identity has unpushed local changes, and
// if so the timestamp of the pending edit.
func (s *Store) IsDirty(entityType EntityType, id string) (bool, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, time.Time{}, ErrStoreClosed
	}

	var nanos int64
	err := s.db.QueryRow(`
		SELECT updated_at FROM dirty WHERE entity_type = ? AND id = ?
	`, string(entityType), id).Scan(&nanos)
	if err == sql.ErrNoRows {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	return true, time.Unix(0, nanos).UTC(), nil
}

// Cursor returns the pull high-water mark for the given scope (an entity
// type or CursorAll). A scope that has never been pulled returns the zero
// time.
func (s *Store) Cursor(scope string) (time.Time, error) {
	val, err := s.GetMeta("cursor:" + scope)
	if err != nil {
		return time.Time{}, err
	}
	if val == "" {
		return time.Time{}, nil
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse cursor %q: %w", scope, err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

// SetCursor advances the pull cursor for the scope. Cursors are
// monotonic; an attempt to move one backwards is ignored.
func (s *Store) SetCursor(scope string, at time.Time) error {
	current, err := s.Cursor(scope)
	if err != nil {
		return err
	}
	if !at.After(current) {
		return nil
	}
	return s.SetMeta("cursor:"+scope, strconv.FormatInt(at.UnixNano(), 10))
}

// GetMeta returns a metadata value, or "" if the key is unset.
func (s *Store) GetMeta(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMeta sets a metadata value.
func (s *Store) SetMeta(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SaveSnapshot caches a serialized read view with its capture time, for
// offline fallback.
func (s *Store) SaveSnapshot(view string, data []byte, capturedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO snapshots (view, data, captured_at) VALUES (?, ?, ?)
		ON CONFLICT (view) DO UPDATE SET data = excluded.data, captured_at = excluded.captured_at
	`, view, string(data), capturedAt.UnixNano())
	return err
}

// Snapshot returns the cached view data and its capture time.
// Returns ErrNoSnapshot when the view has never been cached.
func (s *Store) Snapshot(view string) ([]byte, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, time.Time{}, ErrStoreClosed
	}

	var (
		data  string
		nanos int64
	)
	err := s.db.QueryRow(`
		SELECT data, captured_at FROM snapshots WHERE view = ?
	`, view).Scan(&data, &nanos)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return []byte(data), time.Unix(0, nanos).UTC(), nil
}

// StatusSummary counts live records per entity type. Used by the serve
// command's status endpoint and for snapshotting.
func (s *Store) StatusSummary() (*StatusView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	view := &StatusView{GeneratedAt: time.Now().UTC()}
	rows, err := s.db.Query(`
		SELECT entity_type, COUNT(*) FROM records WHERE deleted = 0 GROUP BY entity_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			et    string
			count int
		)
		if err := rows.Scan(&et, &count); err != nil {
			return nil, err
		}
		switch EntityType(et) {
		case EntityProject:
			view.Projects = count
		case EntityManifestation:
			view.Manifestations = count
		case EntityHarnessConfig:
			view.HarnessConfigs = count
		case EntitySkill:
			view.Skills = count
		}
	}
	return view, rows.Err()
}

// Stats returns store statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM records WHERE deleted = 0").Scan(&count); err != nil {
		return nil, err
	}

	var pending int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM dirty").Scan(&pending); err != nil {
		return nil, err
	}

	var lastSyncStr sql.NullString
	s.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_sync'").Scan(&lastSyncStr)

	var lastSync time.Time
	if lastSyncStr.Valid {
		lastSync, _ = time.Parse(time.RFC3339Nano, lastSyncStr.String)
	}

	return &StoreStats{
		RecordCount:   count,
		PendingSync:   pending,
		LastSync:      lastSync,
		SchemaVersion: schemaVersion,
	}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec     Record
		et      string
		payload sql.NullString
		nanos   int64
		deleted int
	)

	err := sc.Scan(&et, &rec.ID, &payload, &rec.ContentHash, &nanos, &deleted)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.EntityType = EntityType(et)
	if payload.Valid {
		rec.Payload = []byte(payload.String)
	}
	rec.UpdatedAt = time.Unix(0, nanos).UTC()
	rec.Deleted = deleted != 0

	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var results []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
