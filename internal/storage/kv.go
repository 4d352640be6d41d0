// Package storage defines the opaque key-value collaborator the graph
// engine persists through, plus two embedded backends: Badger (default)
// and SQLite. The engine writes one logical mutation per Update
// transaction and never retries on failure.
package storage

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound reports an absent key. Absence is an expected outcome,
// not a fault.
var ErrKeyNotFound = errors.New("storage: key not found")

// Failure marks an I/O-level persistence error. The engine aborts the
// enclosing transaction and surfaces the failure; retry policy belongs
// to the caller.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Txn is a transaction scope over namespaced collections. Keys are
// opaque strings; values are opaque bytes.
type Txn interface {
	// Get returns the value for key in collection, or ErrKeyNotFound.
	Get(collection, key string) ([]byte, error)
	// Put stores value under key in collection.
	Put(collection, key string, value []byte) error
	// Delete removes key from collection. Deleting an absent key is a no-op.
	Delete(collection, key string) error
	// Scan visits every key/value pair in collection. Returning an error
	// from fn aborts the scan and the transaction.
	Scan(collection string, fn func(key string, value []byte) error) error
}

// KV is an embedded key-value store with transaction scopes. Update
// transactions commit on a nil return and abort otherwise; View
// transactions are read-only.
type KV interface {
	View(fn func(Txn) error) error
	Update(fn func(Txn) error) error
	Close() error
}
