// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

// Package tenant provides tenant (school) resolution: mapping request
// hostnames to tenant keys and tenant keys to tenant records.
//
// Tenant records are created at onboarding, outside the gateway. The
// gateway treats them as read-only and may cache them by slug with a
// bounded TTL.
package tenant

import (
	"context"
	"errors"
)

// ErrNotFound indicates no tenant exists for the given slug. Callers must
// surface this as a distinct not-found response, never as a fall-through
// to any dashboard: an unknown subdomain must not reveal anything.
var ErrNotFound = errors.New("tenant not found")

// Tenant is one customer organization with an isolated data partition.
type Tenant struct {
	// ID is the stable internal identifier, compared against the caller's
	// tenant claim for isolation checks.
	ID string `json:"id"`

	// Slug is the unique subdomain label (lowercase DNS-label charset).
	Slug string `json:"slug"`

	// Name is the display name, forwarded as branding metadata.
	Name string `json:"name"`

	// LogoURL references the tenant's logo. Display-only.
	LogoURL string `json:"logo_url,omitempty"`

	// Theme is an opaque branding map (colors, fonts). Display-only;
	// it must never influence an authorization decision.
	Theme map[string]string `json:"theme,omitempty"`
}

// Directory resolves tenant slugs to tenant records.
type Directory interface {
	// LookupBySlug returns the tenant for a slug, or ErrNotFound.
	LookupBySlug(ctx context.Context, slug string) (*Tenant, error)
}
