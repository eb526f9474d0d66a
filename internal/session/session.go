// Package session keeps per-browser state on the server. The browser only
// holds an opaque id in a cookie; the data lives in a pluggable Store.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const CookieName = "session_id"

// Data is what a session remembers between requests.
type Data struct {
	UserID  int64    `json:"user_id,omitempty"`
	Flashes []string `json:"flashes,omitempty"`
}

func (d Data) empty() bool {
	return d.UserID == 0 && len(d.Flashes) == 0
}

// Store persists session data by id. Load returns (nil, nil) for an id
// that is unknown or expired.
type Store interface {
	Load(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, id string, data Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// ErrNoManager is returned by Save on a session that did not come from
// Manager.Middleware.
var ErrNoManager = errors.New("session: not loaded by Manager middleware")

// Session is the request-scoped view of one browser's state. Changes are
// only persisted by Save.
type Session struct {
	id      string
	data    Data
	stale   []string
	manager *Manager
}

// UserID returns the logged-in user, if any.
func (s *Session) UserID() (int64, bool) {
	return s.data.UserID, s.data.UserID != 0
}

func (s *Session) SetUserID(id int64) {
	s.data.UserID = id
}

// AddFlash queues a message for the next rendered page.
func (s *Session) AddFlash(msg string) {
	s.data.Flashes = append(s.data.Flashes, msg)
}

// Flashes returns and removes the queued messages.
func (s *Session) Flashes() []string {
	f := s.data.Flashes
	s.data.Flashes = nil
	return f
}

// Clear forgets everything. The old id is discarded on Save and a fresh one
// is issued if the session is written again.
func (s *Session) Clear() {
	if s.id != "" {
		s.stale = append(s.stale, s.id)
	}
	s.id = ""
	s.data = Data{}
}

// Save writes the session to the store and sets (or expires) the cookie.
// It must run before the response headers are written.
func (s *Session) Save(ctx context.Context, w http.ResponseWriter) error {
	m := s.manager
	if m == nil {
		return ErrNoManager
	}

	for _, id := range s.stale {
		if err := m.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	hadCookie := len(s.stale) > 0
	s.stale = nil

	if s.data.empty() {
		if s.id != "" {
			if err := m.store.Delete(ctx, s.id); err != nil {
				return err
			}
			s.id = ""
			hadCookie = true
		}
		if hadCookie {
			http.SetCookie(w, m.cookie("", -1))
		}
		return nil
	}

	if s.id == "" {
		s.id = uuid.New().String()
	}
	if err := m.store.Save(ctx, s.id, s.data, m.ttl); err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(s.id, 0))
	return nil
}
