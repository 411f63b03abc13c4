// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package tenant

import "testing"

func TestHostResolver_Resolve(t *testing.T) {
	resolver := NewHostResolver("schoolhub.ng",
		[]string{".localhost", "lvh.me"},
		[]string{"www", "api", "admin"})

	tests := []struct {
		name     string
		host     string
		wantKey  string
		wantOK   bool
	}{
		{name: "tenant subdomain", host: "greenwood.schoolhub.ng", wantKey: "greenwood", wantOK: true},
		{name: "tenant subdomain with port", host: "greenwood.schoolhub.ng:8080", wantKey: "greenwood", wantOK: true},
		{name: "uppercase host is normalized", host: "GREENWOOD.Schoolhub.NG", wantKey: "greenwood", wantOK: true},
		{name: "trailing dot stripped", host: "greenwood.schoolhub.ng.", wantKey: "greenwood", wantOK: true},
		{name: "local dev suffix", host: "ikeja.localhost:3000", wantKey: "ikeja", wantOK: true},
		{name: "second dev suffix", host: "ikeja.lvh.me", wantKey: "ikeja", wantOK: true},
		{name: "hyphenated slug", host: "st-marys.schoolhub.ng", wantKey: "st-marys", wantOK: true},

		{name: "apex domain", host: "schoolhub.ng", wantOK: false},
		{name: "apex with port", host: "schoolhub.ng:443", wantOK: false},
		{name: "reserved www", host: "www.schoolhub.ng", wantOK: false},
		{name: "reserved api", host: "api.schoolhub.ng", wantOK: false},
		{name: "reserved admin", host: "admin.schoolhub.ng", wantOK: false},
		{name: "empty host", host: "", wantOK: false},
		{name: "bare IPv4", host: "192.168.1.10", wantOK: false},
		{name: "bare IPv4 with port", host: "192.168.1.10:8080", wantOK: false},
		{name: "bare IPv6", host: "[::1]:8080", wantOK: false},
		{name: "unrelated domain", host: "evil.example.com", wantOK: false},
		{name: "nested subdomain is ambiguous", host: "a.greenwood.schoolhub.ng", wantOK: false},
		{name: "leading hyphen label", host: "-bad.schoolhub.ng", wantOK: false},
		{name: "trailing hyphen label", host: "bad-.schoolhub.ng", wantOK: false},
		{name: "underscore label", host: "bad_label.schoolhub.ng", wantOK: false},
		{name: "empty label", host: ".schoolhub.ng", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := resolver.Resolve(tt.host)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.host, ok, tt.wantOK)
			}
			if ok && key != tt.wantKey {
				t.Errorf("Resolve(%q) key = %q, want %q", tt.host, key, tt.wantKey)
			}
		})
	}
}

func TestHostResolver_NeverPanics(t *testing.T) {
	resolver := NewHostResolver("schoolhub.ng", nil, nil)

	// Resolution must be total: junk input degrades to apex, never fails.
	hosts := []string{
		"", ":", "::::", "...", "\x00", "a]b[c", "host:port:extra",
		"🎓.schoolhub.ng", string(make([]byte, 300)) + ".schoolhub.ng",
	}
	for _, host := range hosts {
		if _, ok := resolver.Resolve(host); ok {
			t.Errorf("Resolve(%q) unexpectedly produced a tenant key", host)
		}
	}
}
