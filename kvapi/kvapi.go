package kvapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/op/go-logging"

	"kvconsole/entry"
	"kvconsole/transport"
)

var log = logging.MustGetLogger("kvconsole.kvapi")

// Doer is the part of *transport.Client the data-access functions need.
type Doer interface {
	Do(ctx context.Context, r transport.Request) (*transport.Response, error)
}

type Client struct {
	t Doer
}

func New(t Doer) *Client {
	return &Client{t: t}
}

// List returns one page of all entries in store order.
func (c *Client) List(ctx context.Context, page, pageSize int) (entry.Page, error) {
	if err := entry.ValidPage(page, pageSize); err != nil {
		return entry.Page{}, err
	}

	q := pageQuery(page, pageSize)
	p, err := c.fetchPage(ctx, "/list", q, pageSize)
	if err != nil {
		log.Errorf("Error fetching data: %v", err)
		return entry.Page{}, err
	}

	return p, nil
}

// Search returns one page of entries whose key matches keyword. Matching
// is up to the server.
func (c *Client) Search(ctx context.Context, keyword string, page, pageSize int) (entry.Page, error) {
	if err := entry.ValidPage(page, pageSize); err != nil {
		return entry.Page{}, err
	}

	q := pageQuery(page, pageSize)
	q.Set("keyword", keyword)
	p, err := c.fetchPage(ctx, "/search", q, pageSize)
	if err != nil {
		log.Errorf("Error searching data for %q: %v", keyword, err)
		return entry.Page{}, err
	}

	return p, nil
}

// Get fetches the raw value stored under key.
func (c *Client) Get(ctx context.Context, key string) (entry.Entry, error) {
	if key == "" {
		return entry.Entry{}, entry.ErrMissingKey
	}

	resp, err := c.t.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/get/" + url.PathEscape(key),
	})
	if err != nil {
		log.Errorf("Error fetching data for key %s: %v", key, err)
		return entry.Entry{}, err
	}

	return entry.Entry{Key: key, Value: string(resp.Body)}, nil
}

func (c *Client) Create(ctx context.Context, e entry.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	_, err := c.t.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/set",
		Body:   e,
	})
	if err != nil {
		log.Errorf("Error adding data for key %s: %v", e.Key, err)
		return err
	}

	return nil
}

func (c *Client) Update(ctx context.Context, e entry.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	_, err := c.t.Do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   "/set/" + url.PathEscape(e.Key),
		Body:   e,
	})
	if err != nil {
		log.Errorf("Error updating data for key %s: %v", e.Key, err)
		return err
	}

	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if key == "" {
		return entry.ErrMissingKey
	}

	_, err := c.t.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/delete/" + url.PathEscape(key),
	})
	if err != nil {
		log.Errorf("Error deleting data for key %s: %v", key, err)
		return err
	}

	return nil
}

func pageQuery(page, pageSize int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	return q
}

// wirePage defers decoding of items so a payload that is not an array can
// be treated as empty instead of failing the whole call.
type wirePage struct {
	Items json.RawMessage `json:"items"`
	Total int             `json:"total"`
}

func (c *Client) fetchPage(ctx context.Context, path string, q url.Values, pageSize int) (entry.Page, error) {
	resp, err := c.t.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  q,
	})
	if err != nil {
		return entry.Page{}, err
	}

	return decodePage(resp.Body, pageSize)
}

func decodePage(body []byte, pageSize int) (entry.Page, error) {
	var w wirePage
	if err := json.Unmarshal(body, &w); err != nil {
		return entry.Page{}, fmt.Errorf("decode page: %w", err)
	}

	p := entry.Page{Total: w.Total}
	raw := bytes.TrimSpace(w.Items)
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &p.Items); err != nil {
			log.Warningf("Discarding malformed items: %v", err)
			p.Items = nil
		}
	} else if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		log.Warningf("Items payload is not an array, treating it as empty")
	}

	if p.Normalize(pageSize) {
		log.Warningf("Server returned more than %d items, extra items dropped", pageSize)
	}

	return p, nil
}
