// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/tenantgate/internal/audit"
	"github.com/tomtom215/tenantgate/internal/identity"
	"github.com/tomtom215/tenantgate/internal/policy"
	"github.com/tomtom215/tenantgate/internal/tenant"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// harness wires a complete in-memory pipeline for one test.
type harness struct {
	gw       *Gateway
	sessions *identity.JWTSessionProvider
	store    *audit.MemoryStore
	logger   *audit.Logger

	apexHits int
	lastNext *http.Request
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}

	tenants := tenant.NewMemoryDirectory()
	tenants.Seed(tenant.Tenant{
		ID:      "greenwood",
		Slug:    "greenwood",
		Name:    "Greenwood College",
		LogoURL: "https://cdn.schoolhub.ng/greenwood/logo.png",
		Theme:   map[string]string{"primary": "#0a5c36", "accent": "#f2b705"},
	})
	tenants.Seed(tenant.Tenant{ID: "ikeja", Slug: "ikeja", Name: "Ikeja Grammar School"})

	profiles := identity.NewMemoryProfileDirectory()
	profiles.Seed("u-bursar", identity.Profile{TenantID: "greenwood", Role: identity.RoleBursar, Name: "Bisi Ade"})

	sessions, err := identity.NewJWTSessionProvider(identity.JWTConfig{
		Secret:     testSecret,
		CookieName: "tg_session",
		HeaderName: "Authorization",
		TTL:        24 * time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	h.sessions = sessions
	resolver := identity.NewResolver(sessions, profiles, identity.BreakerConfig{})

	enforcer, err := policy.NewEnforcer(nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(enforcer.Close)
	engine := policy.NewEngine([]string{"/login", "/signup"}, enforcer)

	h.store = audit.NewMemoryStore(100)
	h.logger = audit.NewLogger(h.store, nil, 100)
	h.logger.Start()
	t.Cleanup(h.logger.Close)

	hosts := tenant.NewHostResolver("schoolhub.ng", nil, []string{"www", "api"})

	apex := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.apexHits++
		w.WriteHeader(http.StatusOK)
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.lastNext = r
		w.WriteHeader(http.StatusOK)
	})

	h.gw = New(Config{
		LoginPath:      "/login",
		RewritePrefix:  "/t",
		CookieName:     "tg_session",
		CookieHTTPOnly: true,
	}, hosts, tenants, resolver, engine, h.logger, apex, next)

	return h
}

func (h *harness) request(t *testing.T, host, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "http://"+host+path, nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: "tg_session", Value: token})
	}
	w := httptest.NewRecorder()
	h.gw.ServeHTTP(w, r)
	return w
}

func (h *harness) mint(t *testing.T, subject, name, tenantID string, role identity.Role) string {
	t.Helper()
	token, err := h.sessions.MintToken(subject, name, tenantID, role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

// auditRecords flushes the async writer and returns everything stored.
func (h *harness) auditRecords(t *testing.T) []audit.Record {
	t.Helper()
	h.logger.Close()
	records, err := h.store.Query(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestGateway_AnonymousRedirectsToLogin(t *testing.T) {
	h := newHarness(t)

	w := h.request(t, "greenwood.schoolhub.ng", "/dashboard", "")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?next=%2Fdashboard" {
		t.Errorf("Location = %q, want /login?next=%%2Fdashboard", loc)
	}
	if len(h.auditRecords(t)) != 0 {
		t.Error("redirect produced an audit record; only denials are audited")
	}
}

func TestGateway_RoleDenialIsAuditedOnce(t *testing.T) {
	h := newHarness(t)
	token := h.mint(t, "u-1", "Ada Obi", "greenwood", identity.RoleTeacher)

	w := h.request(t, "greenwood.schoolhub.ng", "/dashboard/admin/settings", token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "role not permitted") {
		t.Errorf("body = %q, want a role-policy reason", w.Body.String())
	}

	records := h.auditRecords(t)
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want exactly 1", len(records))
	}
	record := records[0]
	if record.Action != audit.ActionUnauthorizedAccess {
		t.Errorf("action = %q, want %q", record.Action, audit.ActionUnauthorizedAccess)
	}
	if record.TenantID != "greenwood" || record.ActorID != "u-1" || record.ActorRole != "teacher" {
		t.Errorf("unexpected record: %+v", record)
	}
	if record.Category != audit.CategorySecurity {
		t.Errorf("category = %q, want Security", record.Category)
	}
	if !strings.Contains(record.Detail, "/dashboard/admin/settings") {
		t.Errorf("detail %q does not name the denied path", record.Detail)
	}
}

func TestGateway_CrossTenantDenialIsAudited(t *testing.T) {
	h := newHarness(t)
	token := h.mint(t, "u-2", "Chidi Okeke", "ikeja", identity.RoleAdmin)

	w := h.request(t, "greenwood.schoolhub.ng", "/dashboard", token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cross-tenant") {
		t.Errorf("body = %q, want a cross-tenant reason", w.Body.String())
	}

	records := h.auditRecords(t)
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	record := records[0]
	if record.Action != audit.ActionCrossTenant {
		t.Errorf("action = %q, want %q", record.Action, audit.ActionCrossTenant)
	}
	if record.TenantID != "greenwood" {
		t.Errorf("record tenant = %q, want the target tenant greenwood", record.TenantID)
	}
	if !strings.Contains(record.Detail, "ikeja") {
		t.Errorf("detail %q does not name the caller's tenant", record.Detail)
	}
}

func TestGateway_OwnerCrossesTenants(t *testing.T) {
	h := newHarness(t)
	token := h.mint(t, "u-owner", "Folake Dada", "ikeja", identity.RoleOwner)

	w := h.request(t, "greenwood.schoolhub.ng", "/dashboard", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if h.lastNext == nil {
		t.Fatal("request never reached the downstream handler")
	}
	if got := h.lastNext.URL.Path; got != "/t/greenwood/dashboard" {
		t.Errorf("rewritten path = %q, want /t/greenwood/dashboard", got)
	}
	if len(h.auditRecords(t)) != 0 {
		t.Error("allowed request produced an audit record")
	}
}

func TestGateway_UnknownTenantIsNotFound(t *testing.T) {
	h := newHarness(t)
	token := h.mint(t, "u-1", "", "greenwood", identity.RoleAdmin)

	tests := []struct {
		name string
		path string
	}{
		{name: "dashboard path", path: "/dashboard"},
		{name: "auth-exempt path", path: "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.request(t, "sunrise.schoolhub.ng", tt.path, token)
			if w.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", w.Code)
			}
			// Uniform body: the probed subdomain is never echoed back.
			if strings.Contains(w.Body.String(), "sunrise") {
				t.Errorf("body %q leaks the probed subdomain", w.Body.String())
			}
		})
	}

	if len(h.auditRecords(t)) != 0 {
		t.Error("unknown-tenant probes must not produce audit records")
	}
}

func TestGateway_ExemptPathAllowsAnonymous(t *testing.T) {
	h := newHarness(t)

	w := h.request(t, "greenwood.schoolhub.ng", "/login", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := h.lastNext.URL.Path; got != "/t/greenwood/login" {
		t.Errorf("rewritten path = %q, want /t/greenwood/login", got)
	}
	// Anonymous callers forward branding but no identity headers.
	if h.lastNext.Header.Get("X-Caller-Subject") != "" {
		t.Error("anonymous request forwarded a caller subject")
	}
	if h.lastNext.Header.Get("X-Tenant-ID") != "greenwood" {
		t.Error("branding headers missing on exempt path")
	}
}

func TestGateway_ApexBypassesTenantPipeline(t *testing.T) {
	h := newHarness(t)

	for _, host := range []string{"schoolhub.ng", "www.schoolhub.ng", "192.168.1.1:8080"} {
		h.request(t, host, "/pricing", "")
	}
	if h.apexHits != 3 {
		t.Errorf("apex hits = %d, want 3", h.apexHits)
	}
	if h.lastNext != nil {
		t.Error("apex traffic leaked into the tenant pipeline")
	}
}

func TestGateway_ForwardedMetadata(t *testing.T) {
	h := newHarness(t)
	token := h.mint(t, "u-1", "Ada Obi", "greenwood", identity.RoleTeacher)

	w := h.request(t, "greenwood.schoolhub.ng", "/dashboard/academics", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	r := h.lastNext
	if r.Header.Get("X-Tenant-ID") != "greenwood" ||
		r.Header.Get("X-Tenant-Name") != "Greenwood College" {
		t.Error("tenant headers not forwarded")
	}
	if got := r.Header.Get("X-Tenant-Theme"); got != "accent=#f2b705;primary=#0a5c36" {
		t.Errorf("theme header = %q", got)
	}
	if r.Header.Get("X-Caller-Subject") != "u-1" ||
		r.Header.Get("X-Caller-Role") != "teacher" ||
		r.Header.Get("X-Claim-Source") != string(identity.SourceToken) {
		t.Error("caller headers not forwarded")
	}

	f, ok := ForwardedFromContext(r.Context())
	if !ok {
		t.Fatal("forwarded metadata missing from downstream context")
	}
	if f.TenantSlug != "greenwood" || f.SubjectID != "u-1" || f.Role != identity.RoleTeacher {
		t.Errorf("unexpected forwarded metadata: %+v", f)
	}
}

func TestGateway_StripsInboundForwardedHeaders(t *testing.T) {
	h := newHarness(t)

	// Anonymous caller on an auth-exempt path, trying to smuggle gateway
	// identity headers past the decision.
	r := httptest.NewRequest(http.MethodGet, "http://greenwood.schoolhub.ng/login", nil)
	r.Header.Set("X-Caller-Subject", "attacker")
	r.Header.Set("X-Caller-Role", "owner")
	r.Header.Set("X-Claim-Source", "token")
	r.Header.Set("X-Tenant-ID", "ikeja")
	r.Header.Set("X-Tenant-Theme", "primary=#bad")
	w := httptest.NewRecorder()
	h.gw.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	fwd := h.lastNext
	for _, header := range []string{"X-Caller-Subject", "X-Caller-Role", "X-Claim-Source"} {
		if got := fwd.Header.Get(header); got != "" {
			t.Errorf("spoofed %s forwarded downstream: %q", header, got)
		}
	}
	if got := fwd.Header.Get("X-Tenant-ID"); got != "greenwood" {
		t.Errorf("X-Tenant-ID = %q, want the gateway's own value greenwood", got)
	}
	if got := fwd.Header.Get("X-Tenant-Theme"); got != "accent=#f2b705;primary=#0a5c36" {
		t.Errorf("X-Tenant-Theme = %q, want the directory's theme", got)
	}

	// An authenticated caller cannot override verified values either.
	token := h.mint(t, "u-1", "Ada Obi", "greenwood", identity.RoleStudent)
	r = httptest.NewRequest(http.MethodGet, "http://greenwood.schoolhub.ng/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: "tg_session", Value: token})
	r.Header.Set("X-Caller-Role", "owner")
	w = httptest.NewRecorder()
	h.gw.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := h.lastNext.Header.Get("X-Caller-Role"); got != "student" {
		t.Errorf("X-Caller-Role = %q, want the verified role student", got)
	}
}

func TestGateway_RefreshedTokenPropagatesOnDeny(t *testing.T) {
	h := newHarness(t)

	// A provider with a wide refresh window rotates on every read.
	sessions, err := identity.NewJWTSessionProvider(identity.JWTConfig{
		Secret:        testSecret,
		CookieName:    "tg_session",
		HeaderName:    "Authorization",
		TTL:           24 * time.Hour,
		RefreshWindow: 48 * time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	h.sessions = sessions
	h.gw.resolver = identity.NewResolver(sessions, identity.NewMemoryProfileDirectory(), identity.BreakerConfig{})

	token := h.mint(t, "u-1", "", "greenwood", identity.RoleStudent)
	w := h.request(t, "greenwood.schoolhub.ng", "/dashboard/admin", token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	// The deny response still carries the rotated session cookie.
	var refreshed *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "tg_session" {
			refreshed = c
		}
	}
	if refreshed == nil {
		t.Fatal("refreshed session cookie dropped on deny")
	}
	if refreshed.Value == token {
		t.Error("cookie was not rotated")
	}
	if !refreshed.HttpOnly {
		t.Error("session cookie missing HttpOnly")
	}
}

// failingDirectory simulates a tenant store outage.
type failingDirectory struct{}

func (failingDirectory) LookupBySlug(context.Context, string) (*tenant.Tenant, error) {
	return nil, errors.New("connection refused")
}

func TestGateway_DirectoryOutageFailsClosed(t *testing.T) {
	h := newHarness(t)
	h.gw.directory = failingDirectory{}

	w := h.request(t, "greenwood.schoolhub.ng", "/dashboard", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if h.lastNext != nil {
		t.Error("request reached downstream during a directory outage")
	}
}
