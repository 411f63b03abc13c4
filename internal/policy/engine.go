// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package policy

import (
	"path"
	"strings"

	"github.com/tomtom215/tenantgate/internal/identity"
	"github.com/tomtom215/tenantgate/internal/logging"
	"github.com/tomtom215/tenantgate/internal/tenant"
)

// Engine is the isolation and route-policy decision function.
//
// Evaluate is a pure function of its inputs: identical (tenant, caller,
// path) always yields the same verdict. The engine holds no per-request
// state and reads nothing from the request beyond its arguments, so
// display-only data (branding, headers) cannot influence a decision.
type Engine struct {
	exemptPrefixes []string
	enforcer       *Enforcer
}

// NewEngine creates an engine with the given auth-exempt path prefixes
// and route-policy enforcer.
func NewEngine(exemptPrefixes []string, enforcer *Enforcer) *Engine {
	prefixes := make([]string, 0, len(exemptPrefixes))
	for _, p := range exemptPrefixes {
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &Engine{
		exemptPrefixes: prefixes,
		enforcer:       enforcer,
	}
}

// Evaluate decides the outcome for one request. Rules run in strict
// order and short-circuit:
//
//  1. Auth-exempt path -> Allow unconditionally.
//  2. Anonymous caller -> RedirectLogin.
//  3. Cross-tenant caller (role != owner) -> DenyCrossTenant. This runs
//     before any role check: isolation is the stronger invariant and a
//     role match must never weaken it.
//  4. Restricted prefix, role outside the allowed set -> DenyRolePolicy.
//  5. Otherwise -> Allow.
func (e *Engine) Evaluate(t *tenant.Tenant, caller *identity.CallerIdentity, reqPath string) Verdict {
	reqPath = cleanPath(reqPath)

	if e.isExempt(reqPath) {
		return Verdict{Decision: Allow}
	}

	if caller.IsAnonymous() {
		return Verdict{Decision: RedirectLogin}
	}

	if caller.Tenant != t.ID && caller.Role != identity.RoleOwner {
		return Verdict{Decision: DenyCrossTenant}
	}

	restricted, allowed, rule, err := e.enforcer.Inspect(caller.Role, reqPath)
	if err != nil {
		// Fail closed: a policy table that cannot be evaluated denies
		// rather than allows.
		logging.Error().Err(err).Str("path", reqPath).Msg("Route policy evaluation failed")
		return Verdict{Decision: DenyRolePolicy, MatchedRule: rule}
	}
	if restricted && !allowed {
		return Verdict{Decision: DenyRolePolicy, MatchedRule: rule}
	}

	return Verdict{Decision: Allow}
}

// isExempt reports whether the path is in the fixed auth-exempt set.
// A prefix matches exactly or at a path-segment boundary, so /login and
// /login/otp are exempt but /loginx is not.
func (e *Engine) isExempt(reqPath string) bool {
	for _, prefix := range e.exemptPrefixes {
		if reqPath == prefix || strings.HasPrefix(reqPath, prefix+"/") {
			return true
		}
	}
	return false
}

// cleanPath normalizes the request path so that dot segments and doubled
// slashes cannot dodge a prefix rule.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
