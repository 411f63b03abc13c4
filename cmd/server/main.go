// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

// Package main is the entry point for the Tenantgate server.
//
// Tenantgate sits in front of a multi-tenant school platform and decides,
// for every request, which tenant owns it, who the caller is, and whether
// the request may proceed. Allowed requests are rewritten to tenant-scoped
// internal paths; denied attempts are durably audited.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered loading (defaults, config.yaml,
//     TENANTGATE_* environment variables)
//  2. Logging: zerolog (JSON in production)
//  3. Stores: tenant/profile directories (memory or BadgerDB) and the
//     audit store (memory or DuckDB)
//  4. Pipeline: identity resolver, route-policy engine, audit writer
//  5. Supervision: suture tree running the audit writer and the denial
//     notifier
//  6. HTTP server: chi router with the gateway mounted as the catch-all
//
// # Configuration
//
// Key environment variables (see internal/config):
//
//	TENANTGATE_GATEWAY_APEX_DOMAIN   base domain, e.g. schoolhub.ng
//	TENANTGATE_SESSION_JWT_SECRET    32+ character signing secret
//	TENANTGATE_DIRECTORY_BACKEND     memory | badger
//	TENANTGATE_AUDIT_BACKEND         memory | duckdb
//
// # Signal handling
//
// SIGINT/SIGTERM trigger graceful shutdown: the server stops accepting
// connections, in-flight requests finish within the shutdown timeout,
// and the audit writer drains its buffer before exit.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/tenantgate/internal/audit"
	"github.com/tomtom215/tenantgate/internal/config"
	"github.com/tomtom215/tenantgate/internal/gateway"
	"github.com/tomtom215/tenantgate/internal/identity"
	"github.com/tomtom215/tenantgate/internal/logging"
	"github.com/tomtom215/tenantgate/internal/middleware"
	"github.com/tomtom215/tenantgate/internal/policy"
	"github.com/tomtom215/tenantgate/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Caller:    cfg.Log.Caller,
		Timestamp: true,
	})
	logging.Info().Str("config", cfg.String()).Msg("Tenantgate starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Directory stores.
	tenants, profiles, closeDirs, err := openDirectories(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open directory stores")
	}
	defer closeDirs()

	cachedTenants := tenant.NewCachedDirectory(tenants, cfg.Directory.TenantCacheTTL)

	// Audit sink.
	auditStore, closeAudit, err := openAuditStore(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open audit store")
	}
	defer closeAudit()

	bus := audit.NewEventBus(int64(cfg.Audit.BufferSize))
	defer bus.Close()
	auditLogger := audit.NewLogger(auditStore, bus, cfg.Audit.BufferSize)

	// Identity resolution.
	sessions, err := identity.NewJWTSessionProvider(identity.JWTConfig{
		Secret:        cfg.Session.JWTSecret,
		CookieName:    cfg.Session.CookieName,
		HeaderName:    cfg.Session.HeaderName,
		TTL:           cfg.Session.TTL,
		RefreshWindow: cfg.Session.RefreshWindow,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create session provider")
	}
	resolver := identity.NewResolver(sessions, profiles, identity.BreakerConfig{
		MaxFailures: cfg.Directory.BreakerMaxFailures,
		OpenTimeout: cfg.Directory.BreakerOpenTimeout,
	})

	// Route policy.
	enforcer, err := policy.NewEnforcer(&policy.EnforcerConfig{
		ModelPath:      cfg.Gateway.PolicyModelPath,
		PolicyPath:     cfg.Gateway.PolicyPath,
		AutoReload:     cfg.Gateway.PolicyAutoReload,
		ReloadInterval: cfg.Gateway.PolicyReloadInterval,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load route policy")
	}
	defer enforcer.Close()
	engine := policy.NewEngine(cfg.Gateway.AuthExemptPrefixes, enforcer)

	hosts := tenant.NewHostResolver(cfg.Gateway.ApexDomain,
		cfg.Gateway.LocalDevSuffixes, cfg.Gateway.ReservedAliases)

	gw := gateway.New(gateway.Config{
		LoginPath:      cfg.Gateway.LoginPath,
		RewritePrefix:  cfg.Gateway.RewritePrefix,
		CookieName:     cfg.Session.CookieName,
		CookieSecure:   cfg.Session.CookieSecure,
		CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
	}, hosts, cachedTenants, resolver, engine, auditLogger,
		apexHandler(), dashboardHandler())

	// Supervision: the audit writer and the denial notifier restart on
	// failure and drain on shutdown.
	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	tree := suture.New("tenantgate", suture.Spec{
		EventHook: handler.MustHook(),
		Timeout:   cfg.Server.ShutdownTimeout,
	})
	tree.Add(auditLogger)
	tree.Add(serviceFunc{name: "denial-notifier", run: func(ctx context.Context) error {
		return audit.RunDenialNotifier(ctx, bus)
	}})
	supErrCh := tree.ServeBackground(ctx)

	// HTTP server.
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      buildRouter(cfg, gw),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server failed")
			cancel()
		}
	}()

	// Shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}

	cancel()
	for err := range supErrCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	logging.Info().Msg("Tenantgate stopped gracefully")
}

// buildRouter assembles the chi router with operational endpoints and the
// gateway as the catch-all.
func buildRouter(cfg *config.Config, gw *gateway.Gateway) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.Server.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimitPerMinute, time.Minute))
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/*", gw)
	return r
}

// apexHandler serves marketing traffic for the apex domain and anything
// the host resolver could not map to a tenant.
func apexHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]string{"site": "marketing"})
	})
}

// dashboardHandler stands in for the tenant application behind the
// gateway. It echoes the forwarded identity/branding metadata so the
// rewrite and propagation can be observed end to end.
func dashboardHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _ := gateway.ForwardedFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"path":    r.URL.Path,
			"tenant":  f.TenantID,
			"subject": f.SubjectID,
			"role":    f.Role.String(),
		})
	})
}

// openDirectories opens the tenant and profile directories for the
// configured backend.
func openDirectories(cfg *config.Config) (tenant.Directory, identity.ProfileDirectory, func(), error) {
	switch cfg.Directory.Backend {
	case "badger":
		opts := badger.DefaultOptions(cfg.Directory.BadgerPath)
		opts.Logger = nil
		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open badger at %s: %w", cfg.Directory.BadgerPath, err)
		}
		closer := func() {
			if err := db.Close(); err != nil {
				logging.Warn().Err(err).Msg("Badger close failed")
			}
		}
		return tenant.NewBadgerDirectory(db), identity.NewBadgerProfileDirectory(db), closer, nil
	default:
		return tenant.NewMemoryDirectory(), identity.NewMemoryProfileDirectory(), func() {}, nil
	}
}

// openAuditStore opens the audit store for the configured backend.
func openAuditStore(ctx context.Context, cfg *config.Config) (audit.Store, func(), error) {
	switch cfg.Audit.Backend {
	case "duckdb":
		db, err := sql.Open("duckdb", cfg.Audit.DuckDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open duckdb at %s: %w", cfg.Audit.DuckDBPath, err)
		}
		store := audit.NewDuckDBStore(db)
		if err := store.CreateTable(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		closer := func() {
			if err := db.Close(); err != nil {
				logging.Warn().Err(err).Msg("DuckDB close failed")
			}
		}
		return store, closer, nil
	default:
		return audit.NewMemoryStore(cfg.Audit.MemoryMaxRecords), func() {}, nil
	}
}

// serviceFunc adapts a function to suture.Service.
type serviceFunc struct {
	name string
	run  func(ctx context.Context) error
}

func (s serviceFunc) Serve(ctx context.Context) error { return s.run(ctx) }
func (s serviceFunc) String() string                  { return s.name }
