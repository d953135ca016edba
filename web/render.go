package web

import (
	"net/http"
	"unicode/utf8"

	"github.com/docker/go-units"

	"kvconsole/console"
)

// summaryLength is how many characters of a value the table shows.
const summaryLength = 64

type row struct {
	Key       string
	Summary   string
	Size      string
	Truncated bool
}

type pageView struct {
	State   console.State
	Rows    []row
	Pages   []int
	Flashes []string
	Loading bool
	Failed  bool
	Editing bool
}

func newRow(key, value string) row {
	r := row{Key: key, Summary: value}
	if utf8.RuneCountInString(value) > summaryLength {
		r.Summary = string([]rune(value)[:summaryLength]) + "…"
		r.Size = units.HumanSize(float64(len(value)))
		r.Truncated = true
	}

	return r
}

func newPageView(st console.State, flashes []string) pageView {
	v := pageView{
		State:   st,
		Flashes: flashes,
		Loading: st.View == console.Loading,
		Failed:  st.View == console.Failed,
		Editing: st.Form.Mode == console.Editing,
	}

	for _, e := range st.Items {
		v.Rows = append(v.Rows, newRow(e.Key, e.Value))
	}
	for i := 1; i <= st.PageCount; i++ {
		v.Pages = append(v.Pages, i)
	}

	return v
}

func (s *Server) render(w http.ResponseWriter, sess *session) {
	v := newPageView(sess.Page.State(), sess.Drain())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.tmpl.ExecuteTemplate(w, "shell.html", v); err != nil {
		log.Errorf("Rendering query page failed: %v", err)
	}
}
