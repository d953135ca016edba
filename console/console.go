// Package console holds the state of the query page and its entry form,
// independent of how they are rendered.
package console

import (
	"context"
	"errors"

	"github.com/op/go-logging"

	"kvconsole/entry"
)

var log = logging.MustGetLogger("kvconsole.console")

// Operator facing messages. Errors never carry more detail than these to
// the UI.
const (
	MsgFetchFailed  = "Failed to fetch data from the server"
	MsgDeleteFailed = "Failed to delete entry"
	MsgEditFailed   = "Failed to fetch entry data"
	MsgRequired     = "Both key and value are required"
	MsgSaveFailed   = "Failed to save data"
)

var (
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrStale is returned by a fetch whose result was discarded because a
	// newer fetch was issued while it was in flight.
	ErrStale        = errors.New("superseded by a newer request")
	ErrFormClosed   = errors.New("form is closed")
	ErrKeyImmutable = errors.New("key cannot be changed while editing")
	ErrBusy         = errors.New("save already in progress")
)

// Entries is the data-access surface the page and form depend on.
// *kvapi.Client satisfies it.
type Entries interface {
	List(ctx context.Context, page, pageSize int) (entry.Page, error)
	Search(ctx context.Context, keyword string, page, pageSize int) (entry.Page, error)
	Get(ctx context.Context, key string) (entry.Entry, error)
	Create(ctx context.Context, e entry.Entry) error
	Update(ctx context.Context, e entry.Entry) error
	Delete(ctx context.Context, key string) error
}

// Saver is the subset of Entries the form needs.
type Saver interface {
	Create(ctx context.Context, e entry.Entry) error
	Update(ctx context.Context, e entry.Entry) error
}
