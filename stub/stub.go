// Package stub serves the key-value wire contract the console consumes on
// top of a store.Store. It exists for local development and tests; it is
// not a production store.
package stub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/op/go-logging"

	"kvconsole/entry"
	"kvconsole/store"
)

var log = logging.MustGetLogger("kvconsole.stub")

type Api struct {
	Store store.Store[string]
}

// ListResponse mirrors the body of /list and /search.
type ListResponse struct {
	Items    []entry.Entry `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
}

func NewRouter(s store.Store[string]) http.Handler {
	a := &Api{Store: s}

	r := chi.NewRouter()
	r.Use(cors)
	r.Get("/list", a.ListHandler)
	r.Get("/search", a.SearchHandler)
	r.Get("/get/{key}", a.GetHandler)
	r.Post("/set", a.CreateHandler)
	r.Put("/set/{key}", a.UpdateHandler)
	r.Delete("/delete/{key}", a.DeleteHandler)

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ListHandler takes the total from Count, so the scan can stop as soon as
// the requested page is filled.
func (a *Api) ListHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	total, err := a.Store.Count()
	if err != nil {
		internalError(w, err)
		return
	}

	resp := ListResponse{
		Items:    []entry.Entry{},
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}
	offset := (page - 1) * pageSize
	if offset < total {
		seen := 0
		err = a.Store.Scan(func(k, v string) error {
			if seen >= offset {
				resp.Items = append(resp.Items, entry.Entry{Key: k, Value: v})
				if len(resp.Items) == pageSize {
					return store.ErrStopScan
				}
			}
			seen++
			return nil
		})
		if err != nil {
			internalError(w, err)
			return
		}
	}

	writeJSON(w, resp)
}

func (a *Api) SearchHandler(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if strings.TrimSpace(keyword) == "" {
		http.Error(w, "Keyword is required", http.StatusBadRequest)
		return
	}

	page, pageSize := pagination(r)
	a.writePage(w, page, pageSize, func(k string) bool { return strings.Contains(k, keyword) })
}

func (a *Api) GetHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	v, err := a.Store.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, v)
}

func (a *Api) CreateHandler(w http.ResponseWriter, r *http.Request) {
	e, ok := readEntry(w, r)
	if !ok {
		return
	}

	err := a.Store.PutIfAbsent(e.Key, e.Value)
	if errors.Is(err, store.ErrExists) {
		http.Error(w, fmt.Sprintf("Key '%s' already exists", e.Key), http.StatusConflict)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	log.Debugf("Created key %s", e.Key)

	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "Key '%s' set successfully", e.Key)
}

func (a *Api) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	e, ok := readEntry(w, r)
	if !ok {
		return
	}
	if e.Key != key {
		http.Error(w, "Key in body does not match path", http.StatusBadRequest)
		return
	}

	found, err := a.Store.Has(key)
	if err != nil {
		internalError(w, err)
		return
	}
	if !found {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}

	if err := a.Store.Put(key, e.Value); err != nil {
		internalError(w, err)
		return
	}
	log.Debugf("Updated key %s", key)

	fmt.Fprintf(w, "Key '%s' set successfully", key)
}

func (a *Api) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	err := a.Store.Delete(key)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	log.Debugf("Deleted key %s", key)

	fmt.Fprintf(w, "Key '%s' deleted successfully", key)
}

// writePage scans everything, since the total of a filtered listing is only
// known at the end.
func (a *Api) writePage(w http.ResponseWriter, page, pageSize int, match func(string) bool) {
	offset := (page - 1) * pageSize
	resp := ListResponse{
		Items:    []entry.Entry{},
		Page:     page,
		PageSize: pageSize,
	}

	err := a.Store.Scan(func(k, v string) error {
		if !match(k) {
			return nil
		}
		if resp.Total >= offset && len(resp.Items) < pageSize {
			resp.Items = append(resp.Items, entry.Entry{Key: k, Value: v})
		}
		resp.Total++
		return nil
	})
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, resp ListResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func pagination(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || pageSize < 1 {
		pageSize = entry.DefaultPageSize
	}

	return page, pageSize
}

// keyParam returns the unescaped {key} segment. chi routes on the raw path
// when the request carries escaped characters, so the segment may still be
// escaped.
func keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			http.Error(w, "Malformed key", http.StatusBadRequest)
			return "", false
		}
		key = unescaped
	}

	if key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return "", false
	}

	return key, true
}

func readEntry(w http.ResponseWriter, r *http.Request) (entry.Entry, bool) {
	var e entry.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return e, false
	}

	if err := e.Validate(); err != nil {
		http.Error(w, "Key and value are required", http.StatusBadRequest)
		return e, false
	}

	return e, true
}

func internalError(w http.ResponseWriter, err error) {
	log.Errorf("Store failure: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
