// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

// Package audit provides append-only recording of denied requests for
// compliance and forensic analysis.
//
// The sink is write-once by contract: the Store interface exposes no
// update or delete path, and readers see records in insertion order
// (queried reverse-chronologically). Writes are best-effort; a sink
// failure is logged locally and never changes or delays an
// already-decided outcome.
package audit

import (
	"time"
)

// Category classifies audit records.
type Category string

const (
	// CategorySecurity marks records produced by denied requests.
	CategorySecurity Category = "Security"
)

// Action identifies what kind of denial occurred.
type Action string

const (
	// ActionUnauthorizedAccess records a role-policy denial.
	ActionUnauthorizedAccess Action = "UNAUTHORIZED_ACCESS_ATTEMPT"

	// ActionCrossTenant records a tenant-isolation denial.
	ActionCrossTenant Action = "CROSS_TENANT_ATTEMPT"
)

// Metadata captures request context for forensics.
type Metadata struct {
	// ClientIP is the remote address of the denied request.
	ClientIP string `json:"client_ip,omitempty"`

	// UserAgent is the client's user agent string.
	UserAgent string `json:"user_agent,omitempty"`

	// ClaimSource records which identity tier produced the caller's
	// claims (token or directory).
	ClaimSource string `json:"claim_source,omitempty"`

	// RequestID links the record to the originating HTTP request.
	RequestID string `json:"request_id,omitempty"`
}

// Record is one denied attempt. Records are created only on deny and are
// immutable once appended.
type Record struct {
	// ID is a unique identifier assigned at enqueue time.
	ID string `json:"id"`

	// TenantID is the tenant the request was made against.
	TenantID string `json:"tenant_id"`

	// ActorID is the denied caller's subject ID.
	ActorID string `json:"actor_id"`

	// ActorName is the caller's display name.
	ActorName string `json:"actor_name,omitempty"`

	// ActorRole is the caller's role at decision time.
	ActorRole string `json:"actor_role,omitempty"`

	// Action is the denial kind.
	Action Action `json:"action"`

	// Category classifies the record.
	Category Category `json:"category"`

	// EntityType names what was acted on (e.g. "route").
	EntityType string `json:"entity_type"`

	// Detail is free text describing the attempt.
	Detail string `json:"detail"`

	// Metadata holds structured request context.
	Metadata Metadata `json:"metadata"`

	// Timestamp is when the denial was decided.
	Timestamp time.Time `json:"timestamp"`
}
