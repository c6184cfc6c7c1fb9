package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/odvcencio/geogot/pkg/object"
)

var badgerGraphPrefix = []byte("g/")

// BadgerBackend stores records as JSON under "g/<commit>" in a BadgerDB
// shared with the object store. The caller owns the database.
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend wraps an open database.
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func badgerGraphKey(id object.Hash) []byte {
	key := make([]byte, 0, len(badgerGraphPrefix)+len(id))
	key = append(key, badgerGraphPrefix...)
	return append(key, string(id)...)
}

func (b *BadgerBackend) Get(id object.Hash) (Record, bool, error) {
	var rec Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerGraphKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("graph get %s: %w", id, err)
	}
	return rec, true, nil
}

func (b *BadgerBackend) Put(rec Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("graph put %s: %w", rec.Commit, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerGraphKey(rec.Commit), val)
	})
	if err != nil {
		return fmt.Errorf("graph put %s: %w", rec.Commit, err)
	}
	return nil
}

func (b *BadgerBackend) Truncate() error {
	if err := b.db.DropPrefix(badgerGraphPrefix); err != nil {
		return fmt.Errorf("graph truncate: %w", err)
	}
	return nil
}

func (b *BadgerBackend) Iterate(fn func(Record) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerGraphPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("graph iterate: %w", err)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerBackend) Close() error { return nil }
