/*
Package sqlite provides the local durable implementation of production.Store.

PURPOSE:
  Keeps workers, places and production entries in a single SQLite file so
  the tracker survives restarts without any server. One table per
  collection; each row holds the record as a JSON payload plus the columns
  needed for ordering and lookup.

KEY TABLES:
  workers, places, overlock_entries, tassel_entries, fold_entries,
  delivery_entries:
    seq          INTEGER PRIMARY KEY AUTOINCREMENT   insertion order
    id           TEXT UNIQUE                         record id
    entry_date   TEXT                                YYYY-MM-DD, NULL for master data
    payload_json TEXT                                the record
    created_at   TEXT                                row write time
  schema_version: one row per applied migration

MIGRATION:
  Migrations form an explicit, forward-only chain. On New() every
  migration newer than the stored version is applied in its own
  transaction and stamped. A file stamped with a version newer than this
  binary knows is refused; nothing is ever wiped.

CONCURRENCY:
  Uses sync.RWMutex plus a single connection. The store gives no
  atomicity across a validate-then-add sequence; that is the caller's job.

USAGE:
  store, err := sqlite.New("./towels.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - production/store.go: Store contract
  - production/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/towel-workflow/production"
)

// Store implements production.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ production.Store = (*Store)(nil)

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// TABLES
// =============================================================================

var tables = map[production.Collection]string{
	production.CollectionWorkers:    "workers",
	production.CollectionPlaces:     "places",
	production.CollectionOverlock:   "overlock_entries",
	production.CollectionTassel:     "tassel_entries",
	production.CollectionFold:       "fold_entries",
	production.CollectionDeliveries: "delivery_entries",
}

func tableFor(c production.Collection) (string, error) {
	t, ok := tables[c]
	if !ok {
		return "", fmt.Errorf("unknown collection %q", c)
	}
	return t, nil
}

// =============================================================================
// MIGRATIONS
// =============================================================================

type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the ordered chain. Append only; never edit a shipped step.
var migrations = []migration{
	{1, "create worker and stage tables", createTables(
		production.CollectionWorkers,
		production.CollectionOverlock,
		production.CollectionTassel,
		production.CollectionFold,
	)},
	{2, "add places and deliveries", createTables(
		production.CollectionPlaces,
		production.CollectionDeliveries,
	)},
	{3, "index entry dates", indexDates(
		production.CollectionOverlock,
		production.CollectionTassel,
		production.CollectionFold,
		production.CollectionDeliveries,
	)},
}

// LatestSchemaVersion is the version a fully migrated database carries.
var LatestSchemaVersion = migrations[len(migrations)-1].version

func createTables(cs ...production.Collection) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range cs {
			ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				entry_date TEXT,
				payload_json TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`, tables[c])
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("create %s: %w", tables[c], err)
			}
		}
		return nil
	}
}

func indexDates(cs ...production.Collection) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range cs {
			ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_entry_date ON %[1]s(entry_date)`, tables[c])
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("index %s: %w", tables[c], err)
			}
		}
		return nil
	}
}

func (s *Store) migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return err
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > LatestSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, LatestSchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemaVersion(ctx)
}

// =============================================================================
// RECORD STORE (production.Store interface)
// =============================================================================

// Add inserts rec. An empty id is replaced by a generated one.
func (s *Store) Add(ctx context.Context, rec production.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec = production.EnsureID(rec)
	c := rec.Collection()
	table, err := tableFor(c)
	if err != nil {
		return "", production.NewStoreError("add", c, err)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", production.NewStoreError("add", c, fmt.Errorf("encode record: %w", err))
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, entry_date, payload_json, created_at) VALUES (?, ?, ?, ?)`, table)
	_, err = s.db.ExecContext(ctx, query,
		rec.RecordID(),
		nullString(string(production.EntryDate(rec))),
		string(payload),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return "", &production.DuplicateIDError{Collection: c, ID: rec.RecordID()}
		}
		return "", production.NewStoreError("add", c, fmt.Errorf("failed to insert record: %w", err))
	}
	return rec.RecordID(), nil
}

// List returns every record of c in insertion order.
func (s *Store) List(ctx context.Context, c production.Collection) ([]production.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, err := tableFor(c)
	if err != nil {
		return nil, production.NewStoreError("list", c, err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT payload_json FROM %s ORDER BY seq ASC", table))
	if err != nil {
		return nil, production.NewStoreError("list", c, fmt.Errorf("failed to query records: %w", err))
	}
	defer rows.Close()

	var records []production.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, production.NewStoreError("list", c, fmt.Errorf("failed to scan record: %w", err))
		}
		rec, err := production.DecodeRecord(c, []byte(payload))
		if err != nil {
			return nil, production.NewStoreError("list", c, fmt.Errorf("failed to decode record: %w", err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, production.NewStoreError("list", c, err)
	}
	return records, nil
}

// Find returns the record with id, or false when absent.
func (s *Store) Find(ctx context.Context, c production.Collection, id string) (production.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, err := tableFor(c)
	if err != nil {
		return nil, false, production.NewStoreError("find", c, err)
	}

	var payload string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT payload_json FROM %s WHERE id = ?", table), id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, production.NewStoreError("find", c, err)
	}
	rec, err := production.DecodeRecord(c, []byte(payload))
	if err != nil {
		return nil, false, production.NewStoreError("find", c, fmt.Errorf("failed to decode record: %w", err))
	}
	return rec, true, nil
}

// Remove deletes id from c. Absent ids return false.
func (s *Store) Remove(ctx context.Context, c production.Collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := tableFor(c)
	if err != nil {
		return false, production.NewStoreError("remove", c, err)
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return false, production.NewStoreError("remove", c, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, production.NewStoreError("remove", c, err)
	}
	return n > 0, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
