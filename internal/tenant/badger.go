// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// tenantKeyPrefix namespaces tenant records in the shared BadgerDB.
const tenantKeyPrefix = "tenant:"

// BadgerDirectory implements Directory using BadgerDB for durable storage.
// The DB handle is shared with other directory stores; this type only
// touches keys under tenantKeyPrefix.
type BadgerDirectory struct {
	db *badger.DB
}

// NewBadgerDirectory creates a BadgerDB-backed tenant directory.
func NewBadgerDirectory(db *badger.DB) *BadgerDirectory {
	return &BadgerDirectory{db: db}
}

// LookupBySlug returns the tenant for a slug, or ErrNotFound.
func (d *BadgerDirectory) LookupBySlug(_ context.Context, slug string) (*Tenant, error) {
	var t Tenant

	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tenantKeyPrefix + strings.ToLower(slug)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get tenant: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// Put stores a tenant record. Used by onboarding tooling and tests; the
// request path never writes tenants.
func (d *BadgerDirectory) Put(_ context.Context, t *Tenant) error {
	t.Slug = strings.ToLower(t.Slug)
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tenant: %w", err)
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tenantKeyPrefix+t.Slug), data)
	})
}
