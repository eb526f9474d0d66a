package session

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type contextKey struct{}

// Manager loads the session of every request into its context.
type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
}

func NewManager(store Store, ttl time.Duration, secure bool) *Manager {
	return &Manager{store: store, ttl: ttl, secure: secure}
}

// Middleware resolves the session cookie. A missing, unknown or unreadable
// session yields an empty one, so the request is treated as anonymous.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := &Session{manager: m}

		if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
			data, err := m.store.Load(r.Context(), cookie.Value)
			switch {
			case err != nil:
				log.Ctx(r.Context()).Warn().Err(err).Msg("session load failed")
				sess.stale = append(sess.stale, cookie.Value)
			case data == nil:
				sess.stale = append(sess.stale, cookie.Value)
			default:
				sess.id = cookie.Value
				sess.data = *data
			}
		}

		ctx := context.WithValue(r.Context(), contextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the request's session. Outside the middleware it
// returns an empty session whose Save fails.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(contextKey{}).(*Session); ok {
		return s
	}
	return &Session{}
}

// NewContext attaches sess to ctx. Tests use it to seed a logged-in user.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// The cookie has no Max-Age: it lives as long as the browser session while
// the store enforces the server-side TTL.
func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
