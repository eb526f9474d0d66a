package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb, err := NewRedisClient(context.Background(), srv.Addr(), "")
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), srv
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, srv := newRedisStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "abc", Data{UserID: 7, Flashes: []string{"hi"}}, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !srv.Exists("session:abc") {
		t.Fatalf("expected session:abc key in redis")
	}
	if ttl := srv.TTL("session:abc"); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}

	got, err := store.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.UserID != 7 || len(got.Flashes) != 1 || got.Flashes[0] != "hi" {
		t.Fatalf("unexpected data: %+v", got)
	}

	if err := store.Delete(ctx, "abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = store.Load(ctx, "abc")
	if err != nil || got != nil {
		t.Fatalf("expected nil after delete, got %+v, %v", got, err)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, srv := newRedisStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "short", Data{UserID: 1}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	srv.FastForward(2 * time.Minute)

	got, err := store.Load(ctx, "short")
	if err != nil || got != nil {
		t.Fatalf("expected expired session, got %+v, %v", got, err)
	}
}

func TestRedisStoreLoadCorrupt(t *testing.T) {
	store, srv := newRedisStore(t)
	if err := srv.Set("session:bad", "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Load(context.Background(), "bad"); err == nil {
		t.Fatalf("expected decode error")
	}
}
