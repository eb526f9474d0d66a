package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayush/bookreview/internal/session"
)

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	m := session.NewManager(session.NewMemoryStore(), time.Hour, false)
	called := false
	h := m.Middleware(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if called {
		t.Fatalf("handler must not run for anonymous request")
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRequireAuthPassesUserID(t *testing.T) {
	store := session.NewMemoryStore()
	if err := store.Save(context.Background(), "sid", session.Data{UserID: 9}, time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := session.NewManager(store, time.Hour, false)

	var got int64
	h := m.Middleware(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserIDFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/book/1", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "sid"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != 9 {
		t.Fatalf("user id = %d, want 9", got)
	}
}
