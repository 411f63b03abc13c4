// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// DuckDBStore implements Store using DuckDB for durable persistence.
// The table is INSERT-only; no code path issues UPDATE or DELETE.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a DuckDB-backed audit store. Call CreateTable
// during initialization.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit_records table if it doesn't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_name TEXT,
			actor_role TEXT,
			action TEXT NOT NULL,
			category TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			detail TEXT NOT NULL,
			metadata JSON,
			timestamp TIMESTAMPTZ NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create audit_records table: %w", err)
	}
	return nil
}

// Append inserts one record.
func (s *DuckDBStore) Append(ctx context.Context, record *Record) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_records (
			id, tenant_id, actor_id, actor_name, actor_role,
			action, category, entity_type, detail, metadata, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.TenantID, record.ActorID, record.ActorName,
		record.ActorRole, string(record.Action), string(record.Category),
		record.EntityType, record.Detail, string(metadata), record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Query returns matching records, most recent first.
func (s *DuckDBStore) Query(ctx context.Context, filter Filter) ([]Record, error) {
	var conditions []string
	var args []interface{}

	if filter.TenantID != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Search != "" {
		conditions = append(conditions, "(actor_name ILIKE ? OR detail ILIKE ? OR action ILIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query := `
		SELECT id, tenant_id, actor_id, actor_name, actor_role,
		       action, category, entity_type, detail, metadata, timestamp
		FROM audit_records`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var record Record
		var action, category, metadata string
		var actorName, actorRole sql.NullString

		err := rows.Scan(&record.ID, &record.TenantID, &record.ActorID,
			&actorName, &actorRole, &action, &category,
			&record.EntityType, &record.Detail, &metadata, &record.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		record.ActorName = actorName.String
		record.ActorRole = actorRole.String
		record.Action = Action(action)
		record.Category = Category(category)
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return results, nil
}
