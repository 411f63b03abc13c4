// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package gateway

import (
	"context"

	"github.com/tomtom215/tenantgate/internal/identity"
	"github.com/tomtom215/tenantgate/internal/tenant"
)

type forwardedKey struct{}

// Forwarded is the identity and branding metadata attached to an allowed
// request for downstream handlers. It is stored by value in the request
// context and never read back by the decision pipeline: display-only
// data cannot influence an authorization outcome.
type Forwarded struct {
	TenantID    string
	TenantSlug  string
	TenantName  string
	TenantLogo  string
	TenantTheme map[string]string

	SubjectID   string
	CallerName  string
	Role        identity.Role
	ClaimSource identity.Source
}

// newForwarded builds the forwarded metadata for an allowed request.
func newForwarded(t *tenant.Tenant, caller *identity.CallerIdentity) Forwarded {
	f := Forwarded{
		TenantID:    t.ID,
		TenantSlug:  t.Slug,
		TenantName:  t.Name,
		TenantLogo:  t.LogoURL,
		TenantTheme: t.Theme,
	}
	if !caller.IsAnonymous() {
		f.SubjectID = caller.SubjectID
		f.CallerName = caller.Name
		f.Role = caller.Role
		f.ClaimSource = caller.Source
	}
	return f
}

// ContextWithForwarded attaches forwarded metadata to a context.
func ContextWithForwarded(ctx context.Context, f Forwarded) context.Context {
	return context.WithValue(ctx, forwardedKey{}, f)
}

// ForwardedFromContext retrieves forwarded metadata. The second return is
// false outside an allowed, tenant-scoped request.
func ForwardedFromContext(ctx context.Context) (Forwarded, bool) {
	f, ok := ctx.Value(forwardedKey{}).(Forwarded)
	return f, ok
}
