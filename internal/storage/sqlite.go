package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteKV implements KV on a single-table SQLite database. It exists
// for deployments that want one inspectable file instead of a Badger
// directory; the engine treats both backends identically.
type SQLiteKV struct {
	db   *sql.DB
	Path string
}

// OpenSQLite opens (or creates) the SQLite database at the given path,
// configures pragmas, and creates the kv table.
func OpenSQLite(path string) (*SQLiteKV, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Failure{Op: "open", Err: fmt.Errorf("create db dir: %w", err)}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &Failure{Op: "open", Err: err}
	}
	kv := &SQLiteKV{db: sqlDB, Path: path}
	if err := kv.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return kv, nil
}

// OpenSQLiteMemory opens an in-memory SQLite database for testing.
func OpenSQLiteMemory() (*SQLiteKV, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, &Failure{Op: "open", Err: err}
	}
	kv := &SQLiteKV{db: sqlDB, Path: ":memory:"}
	if err := kv.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return kv, nil
}

func (s *SQLiteKV) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return &Failure{Op: "open", Err: fmt.Errorf("pragma %q: %w", p, err)}
		}
	}

	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS kv (
    collection TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      BLOB NOT NULL,
    PRIMARY KEY (collection, key)
)`)
	if err != nil {
		return &Failure{Op: "open", Err: fmt.Errorf("create kv table: %w", err)}
	}
	return nil
}

// View runs fn in a read-only transaction.
func (s *SQLiteKV) View(fn func(Txn) error) error {
	return s.run(fn, true)
}

// Update runs fn in a read-write transaction, committing on nil and
// rolling back otherwise.
func (s *SQLiteKV) Update(fn func(Txn) error) error {
	return s.run(fn, false)
}

func (s *SQLiteKV) run(fn func(Txn) error, readOnly bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &Failure{Op: "begin", Err: err}
	}

	if err := fn(&sqliteTxn{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if readOnly {
		// Nothing to persist; a rollback keeps WAL churn down.
		tx.Rollback()
		return nil
	}
	if err := tx.Commit(); err != nil {
		return &Failure{Op: "commit", Err: err}
	}
	return nil
}

// Close releases the underlying database.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

type sqliteTxn struct {
	tx *sql.Tx
}

func (t *sqliteTxn) Get(collection, key string) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRow(
		"SELECT value FROM kv WHERE collection = ? AND key = ?",
		collection, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, &Failure{Op: "get", Err: err}
	}
	return value, nil
}

func (t *sqliteTxn) Put(collection, key string, value []byte) error {
	_, err := t.tx.Exec(`
		INSERT INTO kv (collection, key, value) VALUES (?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value
	`, collection, key, value)
	if err != nil {
		return &Failure{Op: "put", Err: err}
	}
	return nil
}

func (t *sqliteTxn) Delete(collection, key string) error {
	_, err := t.tx.Exec("DELETE FROM kv WHERE collection = ? AND key = ?", collection, key)
	if err != nil {
		return &Failure{Op: "delete", Err: err}
	}
	return nil
}

func (t *sqliteTxn) Scan(collection string, fn func(key string, value []byte) error) error {
	rows, err := t.tx.Query("SELECT key, value FROM kv WHERE collection = ? ORDER BY key", collection)
	if err != nil {
		return &Failure{Op: "scan", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return &Failure{Op: "scan", Err: err}
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &Failure{Op: "scan", Err: err}
	}
	return nil
}
