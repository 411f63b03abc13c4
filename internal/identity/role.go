// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package identity

import "fmt"

// Role is a caller's fixed category within a tenant. The set is closed:
// route policy and isolation rules are defined only over these values,
// and anything else fails to parse.
type Role string

const (
	// RoleOwner is the platform operator role. Owner bypasses tenant
	// isolation (deliberate global visibility) but not route policy.
	RoleOwner Role = "owner"

	RoleAdmin     Role = "admin"
	RoleBursar    Role = "bursar"
	RoleTeacher   Role = "teacher"
	RoleStudent   Role = "student"
	RoleParent    Role = "parent"
	RoleStaff     Role = "staff"
	RoleRegistrar Role = "registrar"
	RoleDriver    Role = "driver"
)

// roles indexes the closed role set for parsing.
var roles = map[Role]struct{}{
	RoleOwner:     {},
	RoleAdmin:     {},
	RoleBursar:    {},
	RoleTeacher:   {},
	RoleStudent:   {},
	RoleParent:    {},
	RoleStaff:     {},
	RoleRegistrar: {},
	RoleDriver:    {},
}

// ParseRole converts a string claim to a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roles[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// String returns the role's string form.
func (r Role) String() string {
	return string(r)
}
