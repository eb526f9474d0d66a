package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in-process. Sessions are lost on restart and
// not shared between replicas, so it is meant for local runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	sess map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	data    Data
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sess: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sess[id]
	if !ok || !m.now().Before(e.expires) {
		return nil, nil
	}
	d := e.data
	d.Flashes = append([]string(nil), e.data.Flashes...)
	return &d, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, data Data, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess[id] = memoryEntry{data: data, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, id)
	return nil
}

// UserIDs lists the users of all live sessions.
func (m *MemoryStore) UserIDs() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, e := range m.sess {
		if e.data.UserID != 0 && m.now().Before(e.expires) {
			ids = append(ids, e.data.UserID)
		}
	}
	return ids
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sess)
}
