package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kvconsole/console"
	"kvconsole/entry"
)

func backToQuery(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/query", http.StatusSeeOther)
}

func (s *Server) QueryHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	if !sess.Page.State().Mounted {
		if err := sess.Page.Mount(r.Context()); err != nil {
			log.Debugf("Mount of session %s failed: %v", sess.ID, err)
		}
	}

	s.render(w, sess)
}

func (s *Server) PageHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		n = 0
	}

	err = sess.Page.GoToPage(r.Context(), n)
	if errors.Is(err, console.ErrPageOutOfRange) {
		sess.Flash(fmt.Sprintf("Page %s does not exist", chi.URLParam(r, "n")))
	} else if err != nil {
		log.Debugf("Page change failed: %v", err)
	}

	backToQuery(w, r)
}

func (s *Server) SearchHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	sess.Page.SetKeyword(r.FormValue("keyword"))
	if err := sess.Page.Search(r.Context()); err != nil {
		log.Debugf("Search failed: %v", err)
	}

	backToQuery(w, r)
}

func (s *Server) ClearHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	if err := sess.Page.Clear(r.Context()); err != nil {
		log.Debugf("Clear failed: %v", err)
	}

	backToQuery(w, r)
}

func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	if err := sess.Page.Refresh(r.Context()); err != nil {
		log.Debugf("Refresh failed: %v", err)
	}

	backToQuery(w, r)
}

func (s *Server) NavQueryHandler(w http.ResponseWriter, r *http.Request) {
	if s.OnQueryClick != nil {
		s.OnQueryClick()
	}

	backToQuery(w, r)
}

func (s *Server) NewEntryHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	sess.Page.Add()

	backToQuery(w, r)
}

func (s *Server) EditEntryHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	if err := sess.Page.Edit(r.Context(), entry.Entry{Key: r.FormValue("key")}); err != nil {
		log.Debugf("Edit of %q failed: %v", r.FormValue("key"), err)
	}

	backToQuery(w, r)
}

func (s *Server) SaveEntryHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	form := sess.Page.Form()

	if form.State().Mode == console.Creating {
		if err := form.SetKey(r.FormValue("key")); err != nil {
			log.Debugf("Setting key failed: %v", err)
		}
	}
	if err := form.SetValue(r.FormValue("value")); err != nil {
		log.Debugf("Setting value failed: %v", err)
	}

	if err := form.Submit(r.Context()); err != nil {
		log.Debugf("Save failed: %v", err)
	} else {
		sess.Flash("Entry saved")
	}

	backToQuery(w, r)
}

func (s *Server) CloseEntryHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	sess.Page.Form().Close()

	backToQuery(w, r)
}

func (s *Server) RequestDeleteHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	key := r.FormValue("key")
	if key != "" {
		sess.Page.RequestDelete(entry.Entry{Key: key})
	}

	backToQuery(w, r)
}

func (s *Server) ConfirmDeleteHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	pending := sess.Page.State().PendingDelete
	err := sess.Page.ConfirmDelete(r.Context())
	if err != nil && !errors.Is(err, console.ErrStale) {
		log.Debugf("Delete of %v failed: %v", pending, err)
	}
	// The pending entry is only cleared once the backend accepted the
	// delete, whatever happened to the refetch after it.
	if pending != nil && sess.Page.State().PendingDelete == nil {
		sess.Flash("Entry deleted")
	}

	backToQuery(w, r)
}

func (s *Server) CancelDeleteHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	sess.Page.CancelDelete()

	backToQuery(w, r)
}
