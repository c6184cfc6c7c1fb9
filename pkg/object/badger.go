package object

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var badgerObjectPrefix = []byte("o/")

// BadgerBackend stores objects in a BadgerDB keyspace under "o/<hash>".
// Values are "type\0content". The backend does not own the database; the
// caller closes it.
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend wraps an open database.
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func badgerObjectKey(h Hash) []byte {
	key := make([]byte, 0, len(badgerObjectPrefix)+len(h))
	key = append(key, badgerObjectPrefix...)
	return append(key, string(h)...)
}

func (b *BadgerBackend) Write(h Hash, objType ObjectType, data []byte) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("object write: %w", err)
	}
	val := make([]byte, 0, len(objType)+1+len(data))
	val = append(val, string(objType)...)
	val = append(val, 0)
	val = append(val, data...)

	err := b.db.Update(func(txn *badger.Txn) error {
		key := badgerObjectKey(h)
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent writer published the same content first.
		return nil
	}
	if err != nil {
		return fmt.Errorf("object write %s: %w", h, err)
	}
	return nil
}

func (b *BadgerBackend) Read(h Hash) (ObjectType, []byte, error) {
	var (
		objType ObjectType
		content []byte
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerObjectKey(h))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		objType, content, err = splitBadgerValue(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return objType, content, nil
}

func (b *BadgerBackend) Has(h Hash) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerObjectKey(h))
		return err
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("object stat %s: %w", h, err)
}

func (b *BadgerBackend) Delete(h Hash) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		key := badgerObjectKey(h)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("object delete %s: %w", h, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("object delete %s: %w", h, err)
	}
	return nil
}

// Iterate visits objects in key (hash) order.
func (b *BadgerBackend) Iterate(fn func(h Hash, objType ObjectType) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerObjectPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			h := Hash(bytes.TrimPrefix(item.KeyCopy(nil), badgerObjectPrefix))
			var objType ObjectType
			err := item.Value(func(val []byte) error {
				idx := bytes.IndexByte(val, 0)
				if idx < 0 {
					return fmt.Errorf("object iterate %s: invalid format (no NUL)", h)
				}
				objType = ObjectType(val[:idx])
				return nil
			})
			if err != nil {
				return err
			}
			if err := fn(h, objType); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerBackend) Close() error { return nil }

func splitBadgerValue(val []byte) (ObjectType, []byte, error) {
	idx := bytes.IndexByte(val, 0)
	if idx < 0 {
		return "", nil, fmt.Errorf("invalid format (no NUL)")
	}
	return ObjectType(val[:idx]), val[idx+1:], nil
}
