package store

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps JSON encoded values in a badger database. An empty
// directory runs badger in memory.
type BadgerStore[T any] struct {
	Db  *badger.DB
	Dir string
}

func NewBadgerStore[T any](dir string) (*BadgerStore[T], error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	log.Debugf("Opened badger store %q", dir)

	return &BadgerStore[T]{Db: db, Dir: dir}, nil
}

func (b *BadgerStore[T]) Count() (int, error) {
	count := 0
	err := b.Db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return -1, err
	}

	return count, nil
}

func (b *BadgerStore[T]) Get(key string) (v T, err error) {
	err = b.Db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound(key)
		}
		if err != nil {
			return err
		}

		return item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, &v)
		})
	})

	return
}

func (b *BadgerStore[T]) Has(key string) (bool, error) {
	found := false
	err := b.Db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		found = true
		return nil
	})

	return found, err
}

func (b *BadgerStore[T]) Put(key string, value T) error {
	buf, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return b.Db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), buf)
	})
}

// PutIfAbsent relies on badger's conflict detection: of two transactions
// racing on the same missing key, the later commit fails with
// ErrConflict and is retried, which then sees the key.
func (b *BadgerStore[T]) PutIfAbsent(key string, value T) error {
	buf, err := json.Marshal(value)
	if err != nil {
		return err
	}

	for {
		err = b.Db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte(key))
			if err == nil {
				return exists(key)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			return txn.Set([]byte(key), buf)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func (b *BadgerStore[T]) Delete(key string) error {
	return b.Db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound(key)
		}
		if err != nil {
			return err
		}

		return txn.Delete([]byte(key))
	})
}

func (b *BadgerStore[T]) Scan(fn func(key string, value T) error) error {
	err := b.Db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var v T
			err := item.Value(func(raw []byte) error {
				return json.Unmarshal(raw, &v)
			})
			if err != nil {
				return err
			}

			if err := fn(string(item.KeyCopy(nil)), v); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrStopScan) {
		return nil
	}

	return err
}

func (b *BadgerStore[T]) Close() error {
	return b.Db.Close()
}
