// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package audit

import (
	"context"
	"strings"
	"sync"
)

// Filter selects records on the read side.
type Filter struct {
	// TenantID limits results to one tenant. Empty matches all.
	TenantID string

	// Category limits results to one category. Empty matches all.
	Category Category

	// Search is a case-insensitive substring match against actor name,
	// detail text, and action.
	Search string

	// Limit caps the result count. Zero means no cap.
	Limit int

	// Offset skips the first N matching records (for pagination).
	Offset int
}

// Store persists audit records. Append-only: the interface deliberately
// has no update or delete method.
type Store interface {
	// Append durably writes one record.
	Append(ctx context.Context, record *Record) error

	// Query returns matching records, most recent first.
	Query(ctx context.Context, filter Filter) ([]Record, error)
}

// MemoryStore implements Store in memory. Suitable for development and
// testing; records are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	maxLen  int
}

// NewMemoryStore creates an in-memory store bounded at maxLen records.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		records: make([]Record, 0, maxLen),
		maxLen:  maxLen,
	}
}

// Append stores a record, evicting the oldest tenth when full.
func (s *MemoryStore) Append(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= s.maxLen {
		remove := s.maxLen / 10
		if remove < 1 {
			remove = 1
		}
		s.records = s.records[remove:]
	}

	s.records = append(s.records, *record)
	return nil
}

// Query returns matching records, most recent first.
func (s *MemoryStore) Query(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Record
	skipped := 0

	for i := len(s.records) - 1; i >= 0; i-- {
		record := s.records[i]
		if !matches(&record, &filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		results = append(results, record)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}

	return results, nil
}

// Len returns the current record count.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// matches reports whether a record satisfies every filter criterion.
func matches(record *Record, filter *Filter) bool {
	if filter.TenantID != "" && record.TenantID != filter.TenantID {
		return false
	}
	if filter.Category != "" && record.Category != filter.Category {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		haystack := strings.ToLower(record.ActorName + " " + record.Detail + " " + string(record.Action))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
