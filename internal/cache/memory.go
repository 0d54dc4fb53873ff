package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryProvider is an in-process LRU cache. Entries share one TTL fixed at
// construction; the ttl passed to Set is ignored.
type MemoryProvider struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryProvider creates an LRU holding up to size entries for ttl
// (zero ttl disables expiry).
func NewMemoryProvider(size int, ttl time.Duration) *MemoryProvider {
	if size <= 0 {
		size = 1024
	}
	return &MemoryProvider{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns a copy of the cached bytes or ErrCacheMiss.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := p.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	p.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Del removes key.
func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.lru.Remove(key)
	return nil
}

// Close drops every entry.
func (p *MemoryProvider) Close() error {
	p.lru.Purge()
	return nil
}

// Len reports the number of cached entries.
func (p *MemoryProvider) Len() int {
	return p.lru.Len()
}
