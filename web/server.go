// Package web serves the operator console: a navigation shell around the
// query page, with the form and delete confirmation rendered as modal
// dialogs. Every action is a plain form post that redirects back to
// /query, so the page state lives entirely in the session's controller.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/codegangsta/negroni"
	"github.com/go-chi/chi/v5"
	"github.com/op/go-logging"
	"github.com/rcrowley/go-metrics"

	"kvconsole/console"
	"kvconsole/store"
)

var log = logging.MustGetLogger("kvconsole.web")

//go:embed templates/*.html
var templates embed.FS

type Server struct {
	api      console.Entries
	sessions store.Store[*session]
	registry metrics.Registry
	tmpl     *template.Template

	// OnQueryClick is invoked by the "Query Data" button of the navigation
	// shell. It only logs by default.
	OnQueryClick func()

	// Now is the clock used for session idle times.
	Now func() time.Time
}

func New(api console.Entries, registry metrics.Registry) (*Server, error) {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}

	tmpl, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		api:      api,
		sessions: store.NewMemoryStore[*session](),
		registry: registry,
		tmpl:     tmpl,
		OnQueryClick: func() {
			log.Info("Query button clicked")
		},
		Now: time.Now,
	}, nil
}

// Handler returns the console wrapped in recovery, request logging and
// request timing middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/query", http.StatusFound)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/audit/metrics", s.MetricsHandler)

	r.Post("/nav/query", s.NavQueryHandler)

	r.Route("/query", func(r chi.Router) {
		r.Get("/", s.QueryHandler)
		r.Get("/page/{n}", s.PageHandler)
		r.Post("/search", s.SearchHandler)
		r.Post("/clear", s.ClearHandler)
		r.Post("/refresh", s.RefreshHandler)
	})

	r.Route("/entries", func(r chi.Router) {
		r.Get("/new", s.NewEntryHandler)
		r.Get("/edit", s.EditEntryHandler)
		r.Post("/save", s.SaveEntryHandler)
		r.Post("/close", s.CloseEntryHandler)
		r.Get("/delete", s.RequestDeleteHandler)
		r.Post("/delete", s.ConfirmDeleteHandler)
		r.Post("/delete/cancel", s.CancelDeleteHandler)
	})

	n := negroni.New(negroni.NewRecovery(), NewLogger(), NewTiming(s.registry))
	n.UseHandler(r)

	return n
}
