package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/ayush/bookreview/internal/auth"
	"github.com/ayush/bookreview/internal/books"
	"github.com/ayush/bookreview/internal/middleware"
	"github.com/ayush/bookreview/internal/session"
	"github.com/ayush/bookreview/internal/web"
)

// Store is everything the handlers need from the database.
type Store interface {
	auth.UserStore
	books.BookStore
	Ping(ctx context.Context) error
}

// Options tunes the router's middleware.
type Options struct {
	// LoginRateLimit is the number of login attempts, and separately of
	// register attempts, allowed per client IP per minute. Zero disables it.
	LoginRateLimit int
	CORSOrigins    []string
}

// NewRouter wires every route of the application.
func NewRouter(opts Options, st Store, ratings books.RatingLookup, sessions *session.Manager, render *web.Renderer) http.Handler {
	authHandler := auth.NewHandler(st, render)
	bookHandler := books.NewHandler(st, ratings, render)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(render.Recoverer)
	r.Use(chimw.NoCache)
	r.Use(sessions.Middleware)

	r.NotFound(render.NotFound)
	r.MethodNotAllowed(render.MethodNotAllowed)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public). Login and register each get their own budget.
	r.Get("/login", authHandler.LoginPage)
	r.With(loginLimiter(opts.LoginRateLimit, render)).Post("/login", authHandler.Login)
	r.Get("/logout", authHandler.Logout)
	r.Get("/register", authHandler.RegisterPage)
	r.With(loginLimiter(opts.LoginRateLimit, render)).Post("/register", authHandler.Register)

	// JSON API (public)
	r.With(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		MaxAge:         300,
	})).Get("/api/{isbn}", bookHandler.API)

	// Catalog routes (protected)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", bookHandler.SearchPage)
		r.Post("/", bookHandler.Search)
		r.Get("/book/{id}", bookHandler.Detail)
		r.Post("/add_review", bookHandler.AddReview)
	})

	return r
}

func loginLimiter(perMinute int, render *web.Renderer) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			render.Apology(w, r, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
}
