package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ayush/bookreview/internal/models"
	"github.com/ayush/bookreview/internal/session"
	"github.com/ayush/bookreview/internal/store"
	"github.com/ayush/bookreview/internal/web"
)

type fakeStore struct {
	users   map[string]models.User
	books   []models.Book
	pingErr error
}

func (f *fakeStore) CreateUser(_ context.Context, username, hashed string) (*models.User, error) {
	if _, ok := f.users[username]; ok {
		return nil, store.ErrUsernameTaken
	}
	u := models.User{ID: int64(len(f.users) + 1), Username: username, Password: hashed}
	f.users[username] = u
	return &u, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (f *fakeStore) SearchBooks(context.Context, string) ([]models.Book, error) { return f.books, nil }

func (f *fakeStore) GetBookByID(_ context.Context, id int64) (*models.Book, error) {
	for _, b := range f.books {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetBookByISBN(_ context.Context, isbn string) (*models.Book, error) {
	for _, b := range f.books {
		if b.ISBN == isbn {
			return &b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListReviews(context.Context, int64) ([]models.Review, error) { return nil, nil }

func (f *fakeStore) AddReview(context.Context, models.NewReview) (int64, error) { return 1, nil }

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

type noRatings struct{}

func (noRatings) Lookup(context.Context, string) (*models.Rating, error) {
	return nil, errors.New("unavailable")
}

func newTestRouter(t *testing.T, opts Options) (http.Handler, *fakeStore) {
	t.Helper()
	rd, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	st := &fakeStore{
		users: map[string]models.User{},
		books: []models.Book{{ID: 1, ISBN: "0000000000", Title: "Zero", Author: "Nobody", Year: 1999}},
	}
	sessions := session.NewManager(session.NewMemoryStore(), time.Hour, false)
	return NewRouter(opts, st, noRatings{}, sessions, rd), st
}

type client struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func TestRegisterBrowseLogout(t *testing.T) {
	h, _ := newTestRouter(t, Options{})
	c := &client{t: t, h: h, cookies: map[string]*http.Cookie{}}

	if rec := c.get("/"); rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("anonymous / should redirect to /login, got %d", rec.Code)
	}

	rec := c.post("/register", url.Values{
		"username": {"alice"}, "password": {"password1"}, "confirmation": {"password1"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("register: status %d", rec.Code)
	}

	rec = c.get("/")
	if rec.Code != http.StatusOK {
		t.Fatalf("logged-in / status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Account created successfully!") {
		t.Fatalf("expected registration flash on first page")
	}
	if rec.Header().Get("Cache-Control") == "" || rec.Header().Get("Pragma") != "no-cache" {
		t.Fatalf("missing no-cache headers: %v", rec.Header())
	}

	if rec := c.get("/book/1"); rec.Code != http.StatusOK {
		t.Fatalf("book page status = %d", rec.Code)
	}

	if rec := c.get("/logout"); rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("logout: got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	if rec := c.get("/"); rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("after logout / should redirect to /login, got %d", rec.Code)
	}
}

func TestLoginThenSearch(t *testing.T) {
	h, _ := newTestRouter(t, Options{})
	c := &client{t: t, h: h, cookies: map[string]*http.Cookie{}}

	c.post("/register", url.Values{"username": {"bobby"}, "password": {"password1"}, "confirmation": {"password1"}})
	c.get("/logout")

	if rec := c.post("/login", url.Values{"username": {"bobby"}, "password": {"password1"}}); rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d", rec.Code)
	}
	rec := c.post("/", url.Values{"search": {"zero"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Zero") {
		t.Fatalf("search failed: %d", rec.Code)
	}
}

func TestAPIIsPublic(t *testing.T) {
	h, _ := newTestRouter(t, Options{CORSOrigins: []string{"*"}})
	req := httptest.NewRequest(http.MethodGet, "/api/0000000000", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"isbn":"0000000000"`) || !strings.Contains(rec.Body.String(), `"year":1999`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS header")
	}
}

func TestUnknownRouteRendersApology(t *testing.T) {
	h, _ := newTestRouter(t, Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Not Found") {
		t.Fatalf("expected 404 apology, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestRouter(t, Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/login", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	h, _ := newTestRouter(t, Options{LoginRateLimit: 2})
	form := url.Values{"username": {"nobody"}, "password": {"whatever1"}}

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third attempt status = %d, want 429", last)
	}
}

func TestLoginAndRegisterLimitsAreSeparate(t *testing.T) {
	h, _ := newTestRouter(t, Options{LoginRateLimit: 2})
	send := func(path string, form url.Values) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	bad := url.Values{"username": {"x"}, "password": {"short"}, "confirmation": {"other"}}
	for i := 0; i < 2; i++ {
		if code := send("/register", bad); code != http.StatusBadRequest {
			t.Fatalf("register attempt %d: status = %d", i+1, code)
		}
	}
	if code := send("/login", url.Values{"username": {"nobody"}, "password": {"whatever1"}}); code == http.StatusTooManyRequests {
		t.Fatalf("register attempts must not use up the login budget")
	}
	if code := send("/register", bad); code != http.StatusTooManyRequests {
		t.Fatalf("third register attempt: status = %d, want 429", code)
	}
}

func TestHealth(t *testing.T) {
	h, st := newTestRouter(t, Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	st.pingErr = errors.New("down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}
}
