package entry

import (
	"errors"
	"fmt"
)

var (
	ErrMissingKey   = errors.New("key is required")
	ErrMissingValue = errors.New("value is required")
	ErrInvalidPage  = errors.New("page and page size must be at least 1")
)

// Entry is a single key/value pair held by the backing store. The key is
// immutable once the entry has been created.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s=%q", e.Key, e.Value)
}

// Validate only checks presence; anything else is up to the server.
func (e Entry) Validate() error {
	if e.Key == "" {
		return ErrMissingKey
	}
	if e.Value == "" {
		return ErrMissingValue
	}

	return nil
}
