// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package policy

// Decision is the outcome of one authorization evaluation.
type Decision int

const (
	// Allow lets the request proceed to the tenant-scoped rewrite.
	Allow Decision = iota

	// RedirectLogin sends an anonymous caller to the login page,
	// carrying the requested path as a return-to parameter.
	RedirectLogin

	// DenyCrossTenant blocks a caller acting against a tenant other than
	// the one their claims authorize. Audited.
	DenyCrossTenant

	// DenyRolePolicy blocks a caller whose role is outside the allowed
	// set for a restricted path prefix. Audited.
	DenyRolePolicy
)

// String returns the decision name for logs and metrics.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case DenyCrossTenant:
		return "deny_cross_tenant"
	case DenyRolePolicy:
		return "deny_role_policy"
	default:
		return "unknown"
	}
}

// Denied reports whether the decision is one of the audited deny outcomes.
func (d Decision) Denied() bool {
	return d == DenyCrossTenant || d == DenyRolePolicy
}

// Verdict is a decision plus the context needed to act on it.
type Verdict struct {
	Decision Decision

	// MatchedRule is the policy path pattern that governed a
	// DenyRolePolicy outcome, for audit detail.
	MatchedRule string
}
