// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package tenant

import (
	"context"
	"strings"
	"sync"
)

// MemoryDirectory implements Directory with an in-memory map.
// Suitable for development and testing.
type MemoryDirectory struct {
	mu      sync.RWMutex
	tenants map[string]Tenant
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{tenants: make(map[string]Tenant)}
}

// Seed registers tenants. Later entries with the same slug overwrite
// earlier ones; slugs are normalized to lowercase.
func (d *MemoryDirectory) Seed(tenants ...Tenant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range tenants {
		t.Slug = strings.ToLower(t.Slug)
		d.tenants[t.Slug] = t
	}
}

// LookupBySlug returns the tenant for a slug, or ErrNotFound.
func (d *MemoryDirectory) LookupBySlug(_ context.Context, slug string) (*Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tenants[strings.ToLower(slug)]
	if !ok {
		return nil, ErrNotFound
	}
	out := t
	return &out, nil
}
