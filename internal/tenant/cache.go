// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package tenant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/tenantgate/internal/metrics"
)

// CachedDirectory decorates a Directory with a bounded-TTL per-slug cache.
// Both positive results and not-found answers are cached so that repeated
// probes of unknown subdomains do not hammer the backing store.
//
// Only tenant metadata is cached. Caller identities are never cached
// anywhere in the gateway.
type CachedDirectory struct {
	inner Directory
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry

	hits   int64
	misses int64
}

type cacheEntry struct {
	tenant    *Tenant // nil means cached not-found
	expiresAt time.Time
}

// NewCachedDirectory wraps inner with a TTL cache. A non-positive TTL
// returns a pass-through with caching disabled.
func NewCachedDirectory(inner Directory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		inner:   inner,
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// WithClock overrides the clock for testing.
func (c *CachedDirectory) WithClock(clock func() time.Time) *CachedDirectory {
	c.clock = clock
	return c
}

// LookupBySlug returns the cached tenant when fresh, otherwise consults the
// inner directory and caches the answer. Backend errors other than
// ErrNotFound are never cached.
func (c *CachedDirectory) LookupBySlug(ctx context.Context, slug string) (*Tenant, error) {
	if c.ttl <= 0 {
		return c.inner.LookupBySlug(ctx, slug)
	}

	now := c.clock()

	c.mu.RLock()
	entry, ok := c.entries[slug]
	c.mu.RUnlock()

	if ok && now.Before(entry.expiresAt) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		metrics.RecordTenantCache(true)
		if entry.tenant == nil {
			return nil, ErrNotFound
		}
		return cloneTenant(entry.tenant), nil
	}

	t, err := c.inner.LookupBySlug(ctx, slug)
	switch {
	case err == nil:
		c.store(slug, t, now)
		return cloneTenant(t), nil
	case errors.Is(err, ErrNotFound):
		c.store(slug, nil, now)
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (c *CachedDirectory) store(slug string, t *Tenant, now time.Time) {
	metrics.RecordTenantCache(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	c.entries[slug] = cacheEntry{tenant: t, expiresAt: now.Add(c.ttl)}
}

// cloneTenant returns a copy that shares nothing with the cached record.
// The Theme map is copied too: callers hand it to downstream code, and a
// mutation there must not poison the cache entry.
func cloneTenant(t *Tenant) *Tenant {
	out := *t
	if t.Theme != nil {
		theme := make(map[string]string, len(t.Theme))
		for k, v := range t.Theme {
			theme[k] = v
		}
		out.Theme = theme
	}
	return &out
}

// Stats returns cumulative hit and miss counts.
func (c *CachedDirectory) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
