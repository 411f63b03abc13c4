// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

// Package config provides layered configuration loading via Koanf v2.
//
// Configuration is resolved in priority order (highest wins):
//
//  1. Environment variables (TENANTGATE_ prefix)
//  2. Config file (config.yaml, overridable via CONFIG_PATH)
//  3. Built-in defaults
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the gateway process.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Gateway   GatewayConfig   `koanf:"gateway"`
	Session   SessionConfig   `koanf:"session"`
	Directory DirectoryConfig `koanf:"directory"`
	Audit     AuditConfig     `koanf:"audit"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is "development" or "production". Production enforces
	// stricter validation (secret length, secure cookies).
	Environment string `koanf:"environment" validate:"oneof=development production"`

	// RateLimitPerMinute caps requests per client IP at the router.
	// Zero disables rate limiting.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute" validate:"gte=0"`
}

// GatewayConfig holds the routing boundary configuration: how hostnames map
// to tenant keys and which paths bypass authentication.
type GatewayConfig struct {
	// ApexDomain is the base domain serving the marketing site, e.g.
	// "schoolhub.ng". Subdomains of it are tenant candidates.
	ApexDomain string `koanf:"apex_domain" validate:"required,fqdn"`

	// LocalDevSuffixes are additional host suffixes treated like the apex
	// domain during development, e.g. ".localhost", ".local.test".
	LocalDevSuffixes []string `koanf:"local_dev_suffixes"`

	// ReservedAliases are subdomain labels that never resolve to a tenant
	// (www, api, admin, ...). Requests for them serve the apex site.
	ReservedAliases []string `koanf:"reserved_aliases"`

	// AuthExemptPrefixes are path prefixes reachable without a session.
	AuthExemptPrefixes []string `koanf:"auth_exempt_prefixes"`

	// LoginPath is where unauthenticated callers are redirected.
	LoginPath string `koanf:"login_path" validate:"required,startswith=/"`

	// RewritePrefix is the internal mount point for tenant-scoped routes.
	// An allowed request for /dashboard on tenant "greenwood" is rewritten
	// to {RewritePrefix}/greenwood/dashboard.
	RewritePrefix string `koanf:"rewrite_prefix" validate:"required,startswith=/"`

	// PolicyModelPath and PolicyPath override the embedded casbin route
	// policy. Empty uses the compiled-in defaults.
	PolicyModelPath string `koanf:"policy_model_path"`
	PolicyPath      string `koanf:"policy_path"`

	// PolicyAutoReload re-reads PolicyPath on an interval when set.
	PolicyAutoReload      bool          `koanf:"policy_auto_reload"`
	PolicyReloadInterval  time.Duration `koanf:"policy_reload_interval"`
}

// SessionConfig holds session credential settings.
type SessionConfig struct {
	// CookieName is the session cookie carrying the signed token.
	CookieName string `koanf:"cookie_name" validate:"required"`

	// HeaderName optionally reads the token from a header (takes priority
	// over the cookie when both are present).
	HeaderName string `koanf:"header_name"`

	// JWTSecret signs and verifies session tokens (HS256).
	// Minimum 32 characters in production.
	JWTSecret string `koanf:"jwt_secret"`

	// TTL is the session token lifetime.
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`

	// RefreshWindow triggers a sliding refresh: when a token's remaining
	// life drops below this window, a replacement token is minted and
	// propagated on the response.
	RefreshWindow time.Duration `koanf:"refresh_window" validate:"gte=0"`

	CookieSecure   bool `koanf:"cookie_secure"`
	CookieHTTPOnly bool `koanf:"cookie_http_only"`
}

// DirectoryConfig holds tenant and profile directory settings.
type DirectoryConfig struct {
	// Backend selects the directory store: "memory" or "badger".
	Backend string `koanf:"backend" validate:"oneof=memory badger"`

	// BadgerPath is the on-disk location for the badger backend.
	BadgerPath string `koanf:"badger_path"`

	// TenantCacheTTL bounds the per-slug tenant cache. Zero disables
	// caching. Caller identities are never cached regardless.
	TenantCacheTTL time.Duration `koanf:"tenant_cache_ttl" validate:"gte=0"`

	// Breaker settings guard the profile fallback read path.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// AuditConfig holds audit sink settings.
type AuditConfig struct {
	// Backend selects the audit store: "memory" or "duckdb".
	Backend string `koanf:"backend" validate:"oneof=memory duckdb"`

	// DuckDBPath is the database file for the duckdb backend.
	DuckDBPath string `koanf:"duckdb_path"`

	// BufferSize is the async write buffer. Records are dropped (and
	// logged locally) when the buffer is full; a deny response is never
	// delayed by the sink.
	BufferSize int `koanf:"buffer_size" validate:"gte=1"`

	// MemoryMaxRecords bounds the memory backend.
	MemoryMaxRecords int `koanf:"memory_max_records"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			Environment:        "development",
			RateLimitPerMinute: 600,
		},
		Gateway: GatewayConfig{
			ApexDomain:       "schoolhub.ng",
			LocalDevSuffixes: []string{".localhost", ".lvh.me"},
			ReservedAliases:  []string{"www", "app", "api", "admin", "mail", "static", "cdn", "status"},
			AuthExemptPrefixes: []string{
				"/login",
				"/signup",
				"/auth/callback",
			},
			LoginPath:            "/login",
			RewritePrefix:        "/t",
			PolicyAutoReload:     false,
			PolicyReloadInterval: 30 * time.Second,
		},
		Session: SessionConfig{
			CookieName:     "tg_session",
			HeaderName:     "Authorization",
			TTL:            24 * time.Hour,
			RefreshWindow:  2 * time.Hour,
			CookieSecure:   true,
			CookieHTTPOnly: true,
		},
		Directory: DirectoryConfig{
			Backend:            "memory",
			BadgerPath:         "/data/tenantgate/directory",
			TenantCacheTTL:     5 * time.Minute,
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Audit: AuditConfig{
			Backend:          "memory",
			DuckDBPath:       "/data/tenantgate/audit.duckdb",
			BufferSize:       1000,
			MemoryMaxRecords: 10000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// String returns a redacted summary suitable for startup logging.
func (c *Config) String() string {
	return fmt.Sprintf("apex=%s backend=%s audit=%s env=%s port=%d",
		c.Gateway.ApexDomain, c.Directory.Backend, c.Audit.Backend,
		c.Server.Environment, c.Server.Port)
}
