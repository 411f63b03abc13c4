// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

// Package identity resolves the caller of a request to a verified identity.
//
// Resolution is two-tier. The fast path reads tenant and role claims
// embedded in the session token by the trusted issuer: no I/O, runs on
// every request. When claims are absent or incomplete, a single
// authoritative profile directory read provides the answer for that
// request only. Directory errors fail closed: the caller is treated as
// anonymous, never granted access by default.
//
// A CallerIdentity is built fresh per request and must never be cached
// or persisted across requests.
package identity

import "context"

// Source tags where a caller's tenant and role claims came from.
type Source string

const (
	// SourceToken means the claims were embedded in the session token by
	// the trusted issuer at issuance time; they are trusted without
	// re-verification.
	SourceToken Source = "token"

	// SourceDirectory means the claims came from an authoritative profile
	// directory read, valid for this request only.
	SourceDirectory Source = "directory"
)

// CallerIdentity is the verified identity of a request's caller.
// A nil *CallerIdentity means the caller is anonymous.
type CallerIdentity struct {
	// SubjectID is the caller's stable subject identifier.
	SubjectID string

	// Tenant is the tenant ID the caller is authorized for.
	Tenant string

	// Role is the caller's role within that tenant.
	Role Role

	// Name is the caller's display name. Display-only.
	Name string

	// Source records which tier produced the tenant/role claims.
	Source Source
}

// IsAnonymous reports whether the identity represents an anonymous caller.
func (c *CallerIdentity) IsAnonymous() bool {
	return c == nil
}

// Profile is an authoritative directory record for a subject.
type Profile struct {
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

// ProfileDirectory resolves subject IDs to authoritative profiles.
type ProfileDirectory interface {
	// LookupBySubjectID returns the profile for a subject, or
	// ErrProfileNotFound.
	LookupBySubjectID(ctx context.Context, subjectID string) (*Profile, error)
}
