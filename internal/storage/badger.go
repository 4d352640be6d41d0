package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// BadgerKV implements KV on an embedded BadgerDB. Collections are
// encoded as key prefixes ("collection/key").
type BadgerKV struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database at the given
// directory. Badger's internal logging is disabled; the engine does its
// own logging around mutations.
func OpenBadger(path string) (*BadgerKV, error) {
	if path == "" {
		return nil, errors.New("badger path is required")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, &Failure{Op: "open", Err: fmt.Errorf("create badger dir %s: %w", path, err)}
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &Failure{Op: "open", Err: err}
	}
	return &BadgerKV{db: db}, nil
}

// OpenBadgerMemory opens an in-memory Badger database for testing.
func OpenBadgerMemory() (*BadgerKV, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &Failure{Op: "open", Err: err}
	}
	return &BadgerKV{db: db}, nil
}

// View runs fn in a read-only transaction.
func (b *BadgerKV) View(fn func(Txn) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn})
	})
}

// Update runs fn in a read-write transaction. The transaction commits
// when fn returns nil and is discarded otherwise.
func (b *BadgerKV) Update(fn func(Txn) error) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn})
	})
}

// Close releases the underlying database.
func (b *BadgerKV) Close() error {
	return b.db.Close()
}

type badgerTxn struct {
	txn *badger.Txn
}

func encodeKey(collection, key string) []byte {
	return []byte(collection + "/" + key)
}

func (t *badgerTxn) Get(collection, key string) ([]byte, error) {
	item, err := t.txn.Get(encodeKey(collection, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, &Failure{Op: "get", Err: err}
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, &Failure{Op: "get", Err: err}
	}
	return val, nil
}

func (t *badgerTxn) Put(collection, key string, value []byte) error {
	if err := t.txn.Set(encodeKey(collection, key), value); err != nil {
		return &Failure{Op: "put", Err: err}
	}
	return nil
}

func (t *badgerTxn) Delete(collection, key string) error {
	if err := t.txn.Delete(encodeKey(collection, key)); err != nil {
		return &Failure{Op: "delete", Err: err}
	}
	return nil
}

func (t *badgerTxn) Scan(collection string, fn func(key string, value []byte) error) error {
	prefix := []byte(collection + "/")
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return &Failure{Op: "scan", Err: err}
		}
		key := strings.TrimPrefix(string(item.Key()), string(prefix))
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}
