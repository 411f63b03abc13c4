// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/tenantgate/internal/identity"
)

func TestEnforcer_Inspect(t *testing.T) {
	enforcer, err := NewEnforcer(nil)
	if err != nil {
		t.Fatalf("failed to create enforcer: %v", err)
	}
	defer enforcer.Close()

	tests := []struct {
		name           string
		role           identity.Role
		path           string
		wantRestricted bool
		wantAllowed    bool
	}{
		{name: "admin prefix for admin", role: identity.RoleAdmin, path: "/dashboard/admin", wantRestricted: true, wantAllowed: true},
		{name: "admin subpath for admin", role: identity.RoleAdmin, path: "/dashboard/admin/settings", wantRestricted: true, wantAllowed: true},
		{name: "admin prefix for teacher", role: identity.RoleTeacher, path: "/dashboard/admin", wantRestricted: true, wantAllowed: false},
		{name: "finance for bursar", role: identity.RoleBursar, path: "/dashboard/finance", wantRestricted: true, wantAllowed: true},
		{name: "finance for parent", role: identity.RoleParent, path: "/dashboard/finance/fees", wantRestricted: true, wantAllowed: false},
		{name: "ungoverned path", role: identity.RoleStudent, path: "/dashboard/results", wantRestricted: false, wantAllowed: true},
		{name: "root path", role: identity.RoleStudent, path: "/", wantRestricted: false, wantAllowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restricted, allowed, rule, err := enforcer.Inspect(tt.role, tt.path)
			if err != nil {
				t.Fatalf("Inspect failed: %v", err)
			}
			if restricted != tt.wantRestricted || allowed != tt.wantAllowed {
				t.Errorf("Inspect(%s, %q) = (restricted=%v, allowed=%v), want (%v, %v)",
					tt.role, tt.path, restricted, allowed, tt.wantRestricted, tt.wantAllowed)
			}
			if restricted && rule == "" {
				t.Error("restricted path reported with an empty governing rule")
			}
			if !restricted && rule != "" {
				t.Errorf("ungoverned path reported rule %q", rule)
			}
		})
	}
}

func TestEnforcer_EmbeddedPolicyGrantsOwnerEverySection(t *testing.T) {
	enforcer, err := NewEnforcer(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer enforcer.Close()

	sections := []string{
		"/dashboard/admin", "/dashboard/finance", "/dashboard/academics",
		"/dashboard/registrar", "/dashboard/transport",
	}
	for _, section := range sections {
		restricted, allowed, _, err := enforcer.Inspect(identity.RoleOwner, section)
		if err != nil {
			t.Fatalf("Inspect(%q) failed: %v", section, err)
		}
		if !restricted || !allowed {
			t.Errorf("owner on %q = (restricted=%v, allowed=%v), want (true, true)", section, restricted, allowed)
		}
	}
}

func TestEnforcer_FilePolicyOverride(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.csv")
	policy := "p, teacher, /dashboard/gradebook, allow\np, teacher, /dashboard/gradebook/*, allow\n"
	if err := os.WriteFile(policyPath, []byte(policy), 0o600); err != nil {
		t.Fatal(err)
	}

	enforcer, err := NewEnforcer(&EnforcerConfig{PolicyPath: policyPath})
	if err != nil {
		t.Fatalf("failed to create enforcer with file policy: %v", err)
	}
	defer enforcer.Close()

	restricted, allowed, _, err := enforcer.Inspect(identity.RoleTeacher, "/dashboard/gradebook/term1")
	if err != nil {
		t.Fatal(err)
	}
	if !restricted || !allowed {
		t.Errorf("teacher on override rule = (restricted=%v, allowed=%v), want (true, true)", restricted, allowed)
	}

	// The embedded table is replaced, not merged: its sections become
	// ungoverned under a file override that omits them.
	restricted, allowed, _, err = enforcer.Inspect(identity.RoleStudent, "/dashboard/admin")
	if err != nil {
		t.Fatal(err)
	}
	if restricted || !allowed {
		t.Errorf("embedded rule leaked through file override: (restricted=%v, allowed=%v)", restricted, allowed)
	}
}

func TestEnforcer_MissingOverrideFallsBackToEmbedded(t *testing.T) {
	enforcer, err := NewEnforcer(&EnforcerConfig{
		ModelPath:  "/nonexistent/model.conf",
		PolicyPath: "/nonexistent/policy.csv",
	})
	if err != nil {
		t.Fatalf("failed to create enforcer: %v", err)
	}
	defer enforcer.Close()

	restricted, allowed, _, err := enforcer.Inspect(identity.RoleAdmin, "/dashboard/admin")
	if err != nil {
		t.Fatal(err)
	}
	if !restricted || !allowed {
		t.Error("embedded policy not loaded when override paths do not exist")
	}
}
