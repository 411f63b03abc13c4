// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package policy

import (
	"testing"

	"github.com/tomtom215/tenantgate/internal/identity"
	"github.com/tomtom215/tenantgate/internal/tenant"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	enforcer, err := NewEnforcer(nil)
	if err != nil {
		t.Fatalf("failed to create enforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)
	return NewEngine([]string{"/login", "/signup", "/auth/callback"}, enforcer)
}

func caller(tenantID string, role identity.Role) *identity.CallerIdentity {
	return &identity.CallerIdentity{
		SubjectID: "u-1",
		Tenant:    tenantID,
		Role:      role,
		Source:    identity.SourceToken,
	}
}

func TestEngine_Evaluate(t *testing.T) {
	engine := newTestEngine(t)
	greenwood := &tenant.Tenant{ID: "greenwood", Slug: "greenwood"}

	tests := []struct {
		name   string
		caller *identity.CallerIdentity
		path   string
		want   Decision
	}{
		// Rule 1: exempt paths allow everyone, even anonymous.
		{name: "anonymous on login", caller: nil, path: "/login", want: Allow},
		{name: "anonymous on login subpath", caller: nil, path: "/login/otp", want: Allow},
		{name: "anonymous on signup", caller: nil, path: "/signup", want: Allow},
		{name: "anonymous on auth callback", caller: nil, path: "/auth/callback", want: Allow},
		{name: "prefix must match segment boundary", caller: nil, path: "/loginx", want: RedirectLogin},

		// Rule 2: anonymous callers are redirected, never denied.
		{name: "anonymous on dashboard", caller: nil, path: "/dashboard", want: RedirectLogin},
		{name: "anonymous on restricted prefix", caller: nil, path: "/dashboard/admin", want: RedirectLogin},

		// Rule 3: isolation beats role policy.
		{name: "cross-tenant admin denied", caller: caller("ikeja", identity.RoleAdmin), path: "/dashboard", want: DenyCrossTenant},
		{
			name:   "cross-tenant beats role mismatch",
			caller: caller("ikeja", identity.RoleStudent),
			path:   "/dashboard/admin",
			want:   DenyCrossTenant,
		},
		{name: "owner crosses tenants", caller: caller("ikeja", identity.RoleOwner), path: "/dashboard", want: Allow},

		// Rule 4: restricted prefixes check the role table.
		{name: "teacher on admin prefix", caller: caller("greenwood", identity.RoleTeacher), path: "/dashboard/admin", want: DenyRolePolicy},
		{name: "teacher on admin subpath", caller: caller("greenwood", identity.RoleTeacher), path: "/dashboard/admin/settings", want: DenyRolePolicy},
		{name: "admin on admin prefix", caller: caller("greenwood", identity.RoleAdmin), path: "/dashboard/admin", want: Allow},
		{name: "bursar on finance", caller: caller("greenwood", identity.RoleBursar), path: "/dashboard/finance/invoices", want: Allow},
		{name: "bursar on academics", caller: caller("greenwood", identity.RoleBursar), path: "/dashboard/academics", want: DenyRolePolicy},
		{name: "teacher on academics", caller: caller("greenwood", identity.RoleTeacher), path: "/dashboard/academics/lessons", want: Allow},
		{name: "driver on transport", caller: caller("greenwood", identity.RoleDriver), path: "/dashboard/transport/routes", want: Allow},
		{name: "student on registrar", caller: caller("greenwood", identity.RoleStudent), path: "/dashboard/registrar", want: DenyRolePolicy},

		// Owner bypasses isolation but not role checks; the policy grants
		// owner every section explicitly, so these allow via the table.
		{name: "cross-tenant owner on admin prefix", caller: caller("ikeja", identity.RoleOwner), path: "/dashboard/admin", want: Allow},

		// Rule 5: ungoverned paths admit any authenticated caller.
		{name: "student on dashboard", caller: caller("greenwood", identity.RoleStudent), path: "/dashboard", want: Allow},
		{name: "parent on results", caller: caller("greenwood", identity.RoleParent), path: "/dashboard/results", want: Allow},

		// Path normalization: dot segments cannot dodge a prefix rule.
		{
			name:   "dot segments normalized",
			caller: caller("greenwood", identity.RoleStudent),
			path:   "/dashboard/results/../admin/settings",
			want:   DenyRolePolicy,
		},
		{
			name:   "doubled slashes normalized",
			caller: caller("greenwood", identity.RoleStudent),
			path:   "//dashboard//admin",
			want:   DenyRolePolicy,
		},
		{name: "empty path", caller: caller("greenwood", identity.RoleStudent), path: "", want: Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := engine.Evaluate(greenwood, tt.caller, tt.path)
			if v.Decision != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.path, v.Decision, tt.want)
			}
			if v.Decision == DenyRolePolicy && v.MatchedRule == "" {
				t.Error("role-policy denial carries no matched rule")
			}
		})
	}
}

func TestEngine_EvaluateIsDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	greenwood := &tenant.Tenant{ID: "greenwood", Slug: "greenwood"}
	c := caller("greenwood", identity.RoleTeacher)

	first := engine.Evaluate(greenwood, c, "/dashboard/admin/settings")
	for i := 0; i < 50; i++ {
		if got := engine.Evaluate(greenwood, c, "/dashboard/admin/settings"); got != first {
			t.Fatalf("evaluation %d = %+v, want %+v", i, got, first)
		}
	}
}

func TestEngine_DenialsAreTerminal(t *testing.T) {
	engine := newTestEngine(t)
	greenwood := &tenant.Tenant{ID: "greenwood", Slug: "greenwood"}

	denials := []struct {
		caller *identity.CallerIdentity
		path   string
	}{
		{caller: caller("ikeja", identity.RoleAdmin), path: "/dashboard"},
		{caller: caller("greenwood", identity.RoleStudent), path: "/dashboard/admin"},
	}
	for _, d := range denials {
		v := engine.Evaluate(greenwood, d.caller, d.path)
		if !v.Decision.Denied() {
			t.Errorf("Evaluate(%q) = %v, want a denial", d.path, v.Decision)
		}
	}

	// Redirects and allows are not denials.
	if v := engine.Evaluate(greenwood, nil, "/dashboard"); v.Decision.Denied() {
		t.Error("RedirectLogin reported as a denial")
	}
	if v := engine.Evaluate(greenwood, caller("greenwood", identity.RoleStudent), "/dashboard"); v.Decision.Denied() {
		t.Error("Allow reported as a denial")
	}
}
