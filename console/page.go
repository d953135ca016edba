package console

import (
	"context"
	"strings"
	"sync"

	"kvconsole/entry"
)

// Page is the query page controller. It owns pagination, search, the list
// view and the dialogs. The mutex is never held across a network call;
// overlapping fetches are resolved by generation, so only the most recently
// issued fetch is applied.
type Page struct {
	api      Entries
	pageSize int
	form     *Form

	mu            sync.Mutex
	gen           uint64
	editGen       uint64
	mounted       bool
	page          int
	total         int
	draft         string
	keyword       string
	searching     bool
	items         []entry.Entry
	view          ViewState
	message       string
	pendingDelete *entry.Entry
}

// State is a point-in-time copy of the page handed to the renderer.
type State struct {
	Page          int
	PageSize      int
	PageCount     int
	Total         int
	Draft         string
	Keyword       string
	Searching     bool
	Items         []entry.Entry
	View          ViewState
	Message       string
	PendingDelete *entry.Entry
	Form          FormState
	Mounted       bool
}

func NewPage(api Entries) *Page {
	p := &Page{
		api:      api,
		pageSize: entry.DefaultPageSize,
		page:     1,
		items:    []entry.Entry{},
		view:     Loaded,
	}
	p.form = NewForm(api, func(ctx context.Context) {
		p.Refresh(ctx)
	})

	return p
}

func (p *Page) Form() *Form {
	return p.form
}

// Mount fetches the first page.
func (p *Page) Mount(ctx context.Context) error {
	p.mu.Lock()
	p.mounted = true
	p.page = 1
	p.mu.Unlock()

	return p.load(ctx)
}

func (p *Page) Refresh(ctx context.Context) error {
	return p.load(ctx)
}

// GoToPage accepts 1..max(1, page count) and rejects anything else without
// touching the current state.
func (p *Page) GoToPage(ctx context.Context, n int) error {
	p.mu.Lock()
	last := max(1, entry.PageCount(p.total, p.pageSize))
	if n < 1 || n > last {
		p.mu.Unlock()
		return ErrPageOutOfRange
	}
	p.page = n
	p.mu.Unlock()

	return p.load(ctx)
}

// SetKeyword only edits the search box; nothing is fetched until Search.
func (p *Page) SetKeyword(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.draft = s
}

// Search commits the keyword and starts over at page 1. A blank keyword
// behaves like Clear.
func (p *Page) Search(ctx context.Context) error {
	p.mu.Lock()
	if strings.TrimSpace(p.draft) == "" {
		p.mu.Unlock()
		return p.Clear(ctx)
	}
	p.searching = true
	p.keyword = p.draft
	p.page = 1
	p.mu.Unlock()

	return p.load(ctx)
}

func (p *Page) Clear(ctx context.Context) error {
	p.mu.Lock()
	p.searching = false
	p.draft = ""
	p.keyword = ""
	p.page = 1
	p.mu.Unlock()

	return p.load(ctx)
}

func (p *Page) RequestDelete(e entry.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pendingDelete = &e
}

func (p *Page) CancelDelete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pendingDelete = nil
}

// ConfirmDelete deletes the pending entry and refetches the current page.
// Rows are never removed locally.
func (p *Page) ConfirmDelete(ctx context.Context) error {
	p.mu.Lock()
	target := p.pendingDelete
	p.mu.Unlock()
	if target == nil {
		return nil
	}

	if err := p.api.Delete(ctx, target.Key); err != nil {
		p.mu.Lock()
		p.message = MsgDeleteFailed
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	if p.pendingDelete != nil && p.pendingDelete.Key == target.Key {
		p.pendingDelete = nil
	}
	p.mu.Unlock()

	return p.load(ctx)
}

// Edit fetches the full entry before opening the form, since the listed
// value may only be a summary.
func (p *Page) Edit(ctx context.Context, e entry.Entry) error {
	p.mu.Lock()
	p.editGen++
	gen := p.editGen
	p.mu.Unlock()

	full, err := p.api.Get(ctx, e.Key)

	p.mu.Lock()
	if gen != p.editGen {
		p.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		p.message = MsgEditFailed
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	p.form.OpenEdit(full)
	return nil
}

func (p *Page) Add() {
	p.form.OpenCreate()
}

func (p *Page) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := State{
		Page:      p.page,
		PageSize:  p.pageSize,
		PageCount: entry.PageCount(p.total, p.pageSize),
		Total:     p.total,
		Draft:     p.draft,
		Keyword:   p.keyword,
		Searching: p.searching,
		Items:     append([]entry.Entry{}, p.items...),
		View:      p.view,
		Message:   p.message,
		Form:      p.form.State(),
		Mounted:   p.mounted,
	}
	if p.pendingDelete != nil {
		pd := *p.pendingDelete
		s.PendingDelete = &pd
	}

	return s
}

func (p *Page) load(ctx context.Context) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	page, searching, keyword := p.page, p.searching, p.keyword
	p.setView(Loading)
	p.message = ""
	p.mu.Unlock()

	var (
		res entry.Page
		err error
	)
	if searching && keyword != "" {
		res, err = p.api.Search(ctx, keyword, page, p.pageSize)
	} else {
		res, err = p.api.List(ctx, page, p.pageSize)
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		log.Debugf("Discarding stale response for page %d (generation %d)", page, gen)
		return ErrStale
	}

	if err != nil {
		p.items = []entry.Entry{}
		p.total = 0
		p.message = MsgFetchFailed
		p.setView(Failed)
		p.mu.Unlock()
		return err
	}

	res.Normalize(p.pageSize)
	p.items = res.Items
	p.total = res.Total
	p.setView(Loaded)

	last := max(1, entry.PageCount(p.total, p.pageSize))
	clamped := p.page > last
	if clamped {
		log.Debugf("Page %d is past the last page, moving to %d", p.page, last)
		p.page = last
	}
	p.mu.Unlock()

	if clamped {
		return p.load(ctx)
	}

	return nil
}

// setView must be called with mu held.
func (p *Page) setView(dst ViewState) {
	if !ValidViewTransition(p.view, dst) {
		log.Warningf("Invalid view transition from %v to %v", p.view, dst)
		return
	}

	p.view = dst
}
