// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

// Package gateway assembles the request-time decision pipeline:
//
//	host -> tenant lookup -> identity resolution -> policy -> response
//
// Each request gets one decision computed purely from its own inputs; no
// state is shared across requests. Allowed requests are rewritten to a
// tenant-scoped internal path with identity and branding metadata
// forwarded; denied requests are audited before the response is written.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/tomtom215/tenantgate/internal/audit"
	"github.com/tomtom215/tenantgate/internal/identity"
	"github.com/tomtom215/tenantgate/internal/logging"
	"github.com/tomtom215/tenantgate/internal/metrics"
	"github.com/tomtom215/tenantgate/internal/policy"
	"github.com/tomtom215/tenantgate/internal/tenant"
)

// Config holds the gateway's routing and propagation settings.
type Config struct {
	// LoginPath receives redirected anonymous callers.
	LoginPath string

	// RewritePrefix is the internal mount point for tenant-scoped
	// routes; an allowed request for path P on tenant S becomes
	// {RewritePrefix}/S{P}.
	RewritePrefix string

	// Cookie settings for propagating refreshed session tokens.
	CookieName     string
	CookieSecure   bool
	CookieHTTPOnly bool
}

// Gateway is the http.Handler intercepting every request.
type Gateway struct {
	cfg       Config
	hosts     *tenant.HostResolver
	directory tenant.Directory
	resolver  *identity.Resolver
	engine    *policy.Engine
	audit     *audit.Logger

	// apex serves marketing traffic; next serves rewritten
	// tenant-scoped requests.
	apex http.Handler
	next http.Handler
}

// New assembles the gateway pipeline.
func New(cfg Config, hosts *tenant.HostResolver, directory tenant.Directory,
	resolver *identity.Resolver, engine *policy.Engine, auditLogger *audit.Logger,
	apex, next http.Handler) *Gateway {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.RewritePrefix == "" {
		cfg.RewritePrefix = "/t"
	}
	return &Gateway{
		cfg:       cfg,
		hosts:     hosts,
		directory: directory,
		resolver:  resolver,
		engine:    engine,
		audit:     auditLogger,
		apex:      apex,
		next:      next,
	}
}

// ServeHTTP runs the decision pipeline for one request.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Host resolution is pure and total: anything ambiguous is apex
	// traffic and bypasses all tenant logic.
	key, ok := g.hosts.Resolve(r.Host)
	if !ok {
		g.apex.ServeHTTP(w, r)
		return
	}

	// Tenant lookup short-circuits before identity or policy work.
	// Unknown subdomains get a distinct not-found, never a dashboard,
	// and this holds even for auth-exempt paths like /login.
	t, err := g.directory.LookupBySlug(r.Context(), key)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeTenantNotFound(w, key)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("tenant_key", key).
			Msg("Tenant directory unavailable")
		writeUnavailable(w)
		return
	}

	caller, sess := g.resolver.Resolve(r.Context(), r)

	// Session refresh side effects propagate on every outcome. Dropping
	// a rotated token breaks session continuity.
	if sess != nil && sess.RefreshedToken != "" {
		g.setSessionCookie(w, sess.RefreshedToken)
	}

	verdict := g.engine.Evaluate(t, caller, r.URL.Path)
	metrics.RecordDecision(verdict.Decision.String())

	switch verdict.Decision {
	case policy.RedirectLogin:
		g.redirectLogin(w, r)
	case policy.DenyCrossTenant, policy.DenyRolePolicy:
		// Enqueue before responding so a shutdown right after the
		// response cannot lose the record.
		g.audit.Enqueue(g.denialRecord(r, t, caller, verdict))
		writeForbidden(w, verdict.Decision)
	case policy.Allow:
		g.forward(w, r, t, caller)
	default:
		// Unknown decisions fail closed.
		logging.Ctx(r.Context()).Error().Str("decision", verdict.Decision.String()).
			Msg("Unhandled policy decision")
		writeForbidden(w, verdict.Decision)
	}
}

// forwardedHeaders are owned by the gateway. Inbound values are stripped
// before forwarding so a client can never inject them past the decision:
// downstream handlers trust these headers as the gateway's verified
// identity and branding.
var forwardedHeaders = []string{
	"X-Tenant-ID",
	"X-Tenant-Name",
	"X-Tenant-Logo",
	"X-Tenant-Theme",
	"X-Caller-Subject",
	"X-Caller-Role",
	"X-Claim-Source",
}

// forward rewrites an allowed request to its tenant-scoped internal path
// and attaches forwarded metadata.
func (g *Gateway) forward(w http.ResponseWriter, r *http.Request, t *tenant.Tenant, caller *identity.CallerIdentity) {
	f := newForwarded(t, caller)
	ctx := ContextWithForwarded(r.Context(), f)

	r2 := r.Clone(ctx)
	r2.URL.Path = g.cfg.RewritePrefix + "/" + t.Slug + r.URL.Path
	r2.URL.RawPath = ""

	for _, h := range forwardedHeaders {
		r2.Header.Del(h)
	}
	r2.Header.Set("X-Tenant-ID", t.ID)
	r2.Header.Set("X-Tenant-Name", t.Name)
	if t.LogoURL != "" {
		r2.Header.Set("X-Tenant-Logo", t.LogoURL)
	}
	if len(t.Theme) > 0 {
		r2.Header.Set("X-Tenant-Theme", encodeTheme(t.Theme))
	}
	if !caller.IsAnonymous() {
		r2.Header.Set("X-Caller-Subject", caller.SubjectID)
		r2.Header.Set("X-Caller-Role", caller.Role.String())
		r2.Header.Set("X-Claim-Source", string(caller.Source))
	}

	g.next.ServeHTTP(w, r2)
}

// redirectLogin sends an anonymous caller to the login page with the
// requested path as the return-to parameter.
func (g *Gateway) redirectLogin(w http.ResponseWriter, r *http.Request) {
	target := g.cfg.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

// denialRecord builds the audit record for a denied request.
func (g *Gateway) denialRecord(r *http.Request, t *tenant.Tenant, caller *identity.CallerIdentity, verdict policy.Verdict) *audit.Record {
	record := &audit.Record{
		TenantID:   t.ID,
		Category:   audit.CategorySecurity,
		EntityType: "route",
		Metadata: audit.Metadata{
			ClientIP:  clientIP(r),
			UserAgent: r.UserAgent(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	}

	if !caller.IsAnonymous() {
		record.ActorID = caller.SubjectID
		record.ActorName = caller.Name
		record.ActorRole = caller.Role.String()
		record.Metadata.ClaimSource = string(caller.Source)
	}

	switch verdict.Decision {
	case policy.DenyCrossTenant:
		record.Action = audit.ActionCrossTenant
		record.Detail = fmt.Sprintf("caller of tenant %q denied on tenant %q path %s",
			callerTenant(caller), t.ID, r.URL.Path)
	default:
		record.Action = audit.ActionUnauthorizedAccess
		record.Detail = fmt.Sprintf("role %q denied on path %s (rule %s)",
			record.ActorRole, r.URL.Path, verdict.MatchedRule)
	}

	return record
}

// setSessionCookie copies a refreshed token onto the outbound response.
func (g *Gateway) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Secure:   g.cfg.CookieSecure,
		HttpOnly: g.cfg.CookieHTTPOnly,
		SameSite: http.SameSiteLaxMode,
	})
}

// callerTenant returns the caller's claimed tenant, or "" for anonymous.
func callerTenant(caller *identity.CallerIdentity) string {
	if caller.IsAnonymous() {
		return ""
	}
	return caller.Tenant
}

// encodeTheme flattens the theme map to sorted k=v pairs for header
// transport.
func encodeTheme(theme map[string]string) string {
	keys := make([]string, 0, len(theme))
	for k := range theme {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+theme[k])
	}
	return strings.Join(pairs, ";")
}

// clientIP extracts the originating client address, preferring the first
// X-Forwarded-For hop set by the edge proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}
