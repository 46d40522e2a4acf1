package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T, cfg RedisConfig) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisWithClient(client, cfg)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisGetSet(t *testing.T) {
	store, _ := newTestRedis(t, RedisConfig{})
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "k", "cached answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || v != "cached answer" {
		t.Errorf("expected hit with stored value, got %q (present=%v)", v, ok)
	}

	if ok, _ := store.Has(ctx, "k"); !ok {
		t.Error("Has should report the stored entry")
	}
}

func TestRedisTTLExpiry(t *testing.T) {
	store, mr := newTestRedis(t, RedisConfig{TTL: time.Minute})
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("entry should have expired")
	}
}

func TestRedisClearRespectsNamespace(t *testing.T) {
	store, mr := newTestRedis(t, RedisConfig{})
	ctx := context.Background()

	_ = store.Set(ctx, "a", "1")
	_ = store.Set(ctx, "b", "2")
	// A foreign key outside the gateway prefix must survive Clear.
	mr.Set("other:key", "keep")

	n, err := store.Len(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 entries, got %d (err=%v)", n, err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, _ = store.Len(ctx)
	if n != 0 {
		t.Errorf("expected empty namespace after Clear, got %d", n)
	}
	if v, err := mr.Get("other:key"); err != nil || v != "keep" {
		t.Error("Clear must not touch keys outside the gateway namespace")
	}
}

func TestRedisDelete(t *testing.T) {
	store, _ := newTestRedis(t, RedisConfig{})
	ctx := context.Background()

	_ = store.Set(ctx, "k", "v")
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := store.Has(ctx, "k"); ok {
		t.Error("entry should be gone after Delete")
	}
}
