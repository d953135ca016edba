package store

import (
	"encoding/json"
	"errors"
	"os"

	"go.etcd.io/bbolt"
)

// BoltStore keeps JSON encoded values in a single bbolt bucket. bbolt
// iterates keys in byte order, which gives Scan its ordering.
type BoltStore[T any] struct {
	Db       *bbolt.DB
	DbFile   string
	FileMode os.FileMode
	Bucket   string
}

func NewBoltStore[T any](file string, mode os.FileMode, bucket string) (*BoltStore[T], error) {
	db, err := bbolt.Open(file, mode, nil)
	if err != nil {
		return nil, err
	}

	b := &BoltStore[T]{
		Db:       db,
		DbFile:   file,
		FileMode: mode,
		Bucket:   bucket,
	}

	if err := b.createBucket(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("Opened bolt store %s (bucket %s)", file, bucket)

	return b, nil
}

func (b *BoltStore[T]) createBucket() error {
	return b.Db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(b.Bucket))
		return err
	})
}

func (b *BoltStore[T]) Count() (int, error) {
	count := 0

	err := b.Db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(b.Bucket)).Stats().KeyN
		return nil
	})
	if err != nil {
		return -1, err
	}

	return count, nil
}

func (b *BoltStore[T]) Get(key string) (v T, err error) {
	err = b.Db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(b.Bucket)).Get([]byte(key))
		if raw == nil {
			return notFound(key)
		}

		return json.Unmarshal(raw, &v)
	})

	return
}

func (b *BoltStore[T]) Has(key string) (bool, error) {
	found := false
	err := b.Db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(b.Bucket)).Get([]byte(key)) != nil
		return nil
	})

	return found, err
}

func (b *BoltStore[T]) Put(key string, value T) error {
	return b.Db.Update(func(tx *bbolt.Tx) error {
		buf, err := json.Marshal(value)
		if err != nil {
			return err
		}

		return tx.Bucket([]byte(b.Bucket)).Put([]byte(key), buf)
	})
}

func (b *BoltStore[T]) PutIfAbsent(key string, value T) error {
	return b.Db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(b.Bucket))
		if bkt.Get([]byte(key)) != nil {
			return exists(key)
		}

		buf, err := json.Marshal(value)
		if err != nil {
			return err
		}

		return bkt.Put([]byte(key), buf)
	})
}

func (b *BoltStore[T]) Delete(key string) error {
	return b.Db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(b.Bucket))
		if bkt.Get([]byte(key)) == nil {
			return notFound(key)
		}

		return bkt.Delete([]byte(key))
	})
}

func (b *BoltStore[T]) Scan(fn func(key string, value T) error) error {
	err := b.Db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(b.Bucket)).ForEach(func(k, raw []byte) error {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}

			return fn(string(k), v)
		})
	})
	if errors.Is(err, ErrStopScan) {
		return nil
	}

	return err
}

func (b *BoltStore[T]) Close() error {
	return b.Db.Close()
}
