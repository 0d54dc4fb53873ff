package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNoopProvider(t *testing.T) {
	var p Provider = NoopProvider{}
	if err := p.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := p.Get(context.Background(), "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider(2, time.Minute)
	ctx := context.Background()

	value := []byte("payload")
	if err := p.Set(ctx, "a", value, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'X'

	got, err := p.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected stored copy, got %q", got)
	}

	_ = p.Set(ctx, "b", []byte("b"), 0)
	_ = p.Set(ctx, "c", []byte("c"), 0)
	if p.Len() != 2 {
		t.Fatalf("expected LRU bound of 2, got %d", p.Len())
	}
	if _, err := p.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected oldest entry to be evicted")
	}

	if err := p.Del(ctx, "c"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := p.Get(ctx, "c"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected deleted entry to miss")
	}
}

func TestRedisProvider(t *testing.T) {
	srv := miniredis.RunT(t)

	p, err := NewRedisProvider(RedisConfig{Addr: srv.Addr()})
	if err != nil {
		t.Fatalf("new redis provider: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	if _, err := p.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
	if err := p.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := p.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("unexpected get result %q, %v", got, err)
	}
	if ttl := srv.TTL("k"); ttl != time.Minute {
		t.Fatalf("expected ttl of 1m, got %v", ttl)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if srv.Exists("k") {
		t.Fatalf("expected key to be deleted")
	}
}

func TestRedisProviderRequiresAddr(t *testing.T) {
	if _, err := NewRedisProvider(RedisConfig{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}

func TestRedisProviderPingFailure(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	if _, err := NewRedisProvider(RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	if p, name := New(Options{Backend: BackendNone}, nil); name != BackendNone {
		t.Fatalf("expected none, got %s (%T)", name, p)
	}
	if p, name := New(Options{Backend: BackendMemory, Size: 8, TTL: time.Minute}, nil); name != BackendMemory {
		t.Fatalf("expected memory, got %s (%T)", name, p)
	} else if _, ok := p.(*MemoryProvider); !ok {
		t.Fatalf("expected *MemoryProvider, got %T", p)
	}

	srv := miniredis.RunT(t)
	p, name := New(Options{Backend: BackendRedis, Redis: RedisConfig{Addr: srv.Addr()}}, nil)
	if name != BackendRedis {
		t.Fatalf("expected redis, got %s", name)
	}
	p.Close()
}

func TestNewDegradesWhenRedisUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	p, name := New(Options{Backend: BackendRedis, Redis: RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}}, nil)
	if name != BackendNone {
		t.Fatalf("expected fallback to none, got %s", name)
	}
	if _, ok := p.(NoopProvider); !ok {
		t.Fatalf("expected NoopProvider, got %T", p)
	}
}
