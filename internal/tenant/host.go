// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package tenant

import (
	"net"
	"strings"
)

// HostResolver extracts a tenant key from a request hostname.
//
// Resolution is pure and total: it never fails. Any hostname that cannot
// be confidently mapped to a tenant key (bare IPs, the apex domain itself,
// reserved aliases, malformed labels) degrades to the apex classification
// and the request bypasses tenant logic entirely.
type HostResolver struct {
	apexDomain string
	suffixes   []string
	reserved   map[string]struct{}
}

// NewHostResolver builds a resolver for the given apex domain, local-dev
// suffixes (e.g. ".localhost"), and reserved aliases (e.g. "www").
func NewHostResolver(apexDomain string, devSuffixes, reservedAliases []string) *HostResolver {
	reserved := make(map[string]struct{}, len(reservedAliases))
	for _, alias := range reservedAliases {
		reserved[strings.ToLower(alias)] = struct{}{}
	}

	suffixes := make([]string, 0, len(devSuffixes)+1)
	suffixes = append(suffixes, "."+strings.ToLower(strings.TrimPrefix(apexDomain, ".")))
	for _, s := range devSuffixes {
		if s == "" {
			continue
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		suffixes = append(suffixes, strings.ToLower(s))
	}

	return &HostResolver{
		apexDomain: strings.ToLower(strings.TrimPrefix(apexDomain, ".")),
		suffixes:   suffixes,
		reserved:   reserved,
	}
}

// Resolve classifies a request host. It returns the tenant key and true,
// or "" and false for apex/marketing traffic.
func (r *HostResolver) Resolve(host string) (string, bool) {
	host = strings.ToLower(strings.TrimSuffix(stripPort(host), "."))
	if host == "" || host == r.apexDomain {
		return "", false
	}

	// Bare IPs carry no tenant information.
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return "", false
	}

	key := ""
	for _, suffix := range r.suffixes {
		if strings.HasSuffix(host, suffix) {
			key = strings.TrimSuffix(host, suffix)
			break
		}
	}
	if key == "" {
		// Host is outside every configured domain. Treat as marketing
		// traffic rather than guessing at a tenant.
		return "", false
	}

	// Nested subdomains (a.b.apex) are ambiguous; use the leftmost label
	// only if the remainder is a single clean DNS label.
	if strings.Contains(key, ".") {
		return "", false
	}
	if _, ok := r.reserved[key]; ok {
		return "", false
	}
	if !validLabel(key) {
		return "", false
	}

	return key, true
}

// stripPort removes a trailing :port if present, tolerating IPv6 literals.
func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// validLabel reports whether s is a plausible DNS label: 1-63 chars of
// [a-z0-9-], not starting or ending with a hyphen.
func validLabel(s string) bool {
	if len(s) == 0 || len(s) > 63 {
		return false
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}
