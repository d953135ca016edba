package store

import (
	"errors"
	"fmt"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("kvconsole.store")

var (
	ErrNotFound = errors.New("key not found")
	ErrExists   = errors.New("key already exists")
	// ErrStopScan may be returned from a Scan callback to end the scan early
	// without an error.
	ErrStopScan = errors.New("stop scan")
)

type Store[T any] interface {
	Put(key string, value T) error
	// PutIfAbsent stores value only when key is missing, atomically, and
	// returns ErrExists otherwise.
	PutIfAbsent(key string, value T) error
	Get(key string) (T, error)
	Delete(key string) error
	Has(key string) (bool, error)
	Count() (int, error)
	// Scan visits every entry in ascending key order.
	Scan(fn func(key string, value T) error) error
	Close() error
}

const (
	EngineMemory = "memory"
	EngineBolt   = "bolt"
	EngineBadger = "badger"
)

// Open builds a store for the named engine. path is the bolt file or the
// badger directory and is ignored for the memory engine.
func Open[T any](engine, path string) (Store[T], error) {
	switch engine {
	case EngineMemory, "":
		return NewMemoryStore[T](), nil
	case EngineBolt:
		return NewBoltStore[T](path, 0600, "entries")
	case EngineBadger:
		return NewBadgerStore[T](path)
	}

	return nil, fmt.Errorf("unknown store engine %q", engine)
}

func notFound(key string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

func exists(key string) error {
	return fmt.Errorf("%w: %s", ErrExists, key)
}
