// Package cache provides the injectable TTL key-value cache used by the
// fetch gateway. Backends are best-effort: a failing read or write is logged
// and treated as a miss, never surfaced as a request failure.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache stores serialized response bodies under normalized request keys.
// Entries past their TTL are treated as absent and evicted lazily.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Memory is an in-process Cache backed by go-cache.
type Memory struct {
	inner *gocache.Cache
}

// NewMemory creates an in-memory cache. Expired entries are swept every
// cleanupInterval; between sweeps they are still invisible to Get.
func NewMemory(cleanupInterval time.Duration) *Memory {
	return &Memory{
		inner: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.inner.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.inner.Set(key, value, ttl)
}
