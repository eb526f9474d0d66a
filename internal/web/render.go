// Package web renders the HTML pages, including the apology page every
// failure ends up on.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ayush/bookreview/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"search.html", "book.html", "login.html", "register.html", "apology.html"}

// Page is what every template receives.
type Page struct {
	Flashes  []string
	LoggedIn bool
	Data     any
}

// Apology is the data of apology.html.
type Apology struct {
	Message string
	Code    int
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	rd := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, p := range pages {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+p)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		rd.pages[p] = t
	}
	return rd, nil
}

// Render executes page with data. Pending flashes are consumed and the
// session is saved before anything is written.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	t, ok := rd.pages[page]
	if !ok {
		log.Ctx(r.Context()).Error().Str("page", page).Msg("unknown template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sess := session.FromContext(r.Context())
	_, loggedIn := sess.UserID()
	p := Page{Flashes: sess.Flashes(), LoggedIn: loggedIn, Data: data}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("page", page).Msg("render failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := sess.Save(r.Context(), w); err != nil && !errors.Is(err, session.ErrNoManager) {
		log.Ctx(r.Context()).Warn().Err(err).Msg("session save failed")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Apology renders the uniform error page.
func (rd *Renderer) Apology(w http.ResponseWriter, r *http.Request, message string, code int) {
	rd.Render(w, r, code, "apology.html", Apology{Message: message, Code: code})
}

// NotFound and MethodNotAllowed plug into the chi router.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.Apology(w, r, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

func (rd *Renderer) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rd.Apology(w, r, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

// Recoverer turns a panic into a 500 apology.
func (rd *Renderer) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Ctx(r.Context()).Error().Interface("panic", rec).Msg("handler panicked")
				rd.Apology(w, r, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
