// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrProfileNotFound indicates no profile row exists for a subject.
var ErrProfileNotFound = errors.New("profile not found")

// profileKeyPrefix namespaces profile records in the shared BadgerDB.
const profileKeyPrefix = "profile:"

// MemoryProfileDirectory implements ProfileDirectory with an in-memory map.
// Suitable for development and testing.
type MemoryProfileDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryProfileDirectory creates an empty in-memory profile directory.
func NewMemoryProfileDirectory() *MemoryProfileDirectory {
	return &MemoryProfileDirectory{profiles: make(map[string]Profile)}
}

// Seed registers a profile for a subject.
func (d *MemoryProfileDirectory) Seed(subjectID string, p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[subjectID] = p
}

// LookupBySubjectID returns the profile for a subject, or ErrProfileNotFound.
func (d *MemoryProfileDirectory) LookupBySubjectID(_ context.Context, subjectID string) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[subjectID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	out := p
	return &out, nil
}

// BadgerProfileDirectory implements ProfileDirectory using BadgerDB.
// The DB handle is shared with the tenant directory; this type only
// touches keys under profileKeyPrefix.
type BadgerProfileDirectory struct {
	db *badger.DB
}

// NewBadgerProfileDirectory creates a BadgerDB-backed profile directory.
func NewBadgerProfileDirectory(db *badger.DB) *BadgerProfileDirectory {
	return &BadgerProfileDirectory{db: db}
}

// LookupBySubjectID returns the profile for a subject, or ErrProfileNotFound.
func (d *BadgerProfileDirectory) LookupBySubjectID(_ context.Context, subjectID string) (*Profile, error) {
	var p Profile

	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(profileKeyPrefix + subjectID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrProfileNotFound
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// Put stores a profile record. Used by onboarding tooling and tests.
func (d *BadgerProfileDirectory) Put(_ context.Context, subjectID string, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profileKeyPrefix+subjectID), data)
	})
}
