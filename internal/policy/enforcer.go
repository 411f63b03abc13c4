// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

// Package policy implements the isolation and route-policy engine: the
// pure decision function mapping (tenant, caller, path) to an outcome.
//
// The role-prefix table lives in a casbin policy (embedded defaults,
// optionally overridden by files): one declarative {path-pattern ->
// allowed-roles} mapping evaluated by a single matcher, so the stated
// policy and the enforced policy cannot drift apart.
package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "embed"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/casbin/casbin/v2/util"

	"github.com/tomtom215/tenantgate/internal/identity"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// EnforcerConfig holds configuration for the route-policy enforcer.
type EnforcerConfig struct {
	// ModelPath overrides the embedded casbin model when the file exists.
	ModelPath string

	// PolicyPath overrides the embedded policy when the file exists.
	PolicyPath string

	// AutoReload re-reads PolicyPath periodically. Only effective with a
	// file-backed policy.
	AutoReload bool

	// ReloadInterval is how often to check for policy changes.
	ReloadInterval time.Duration
}

// Enforcer evaluates the static role -> path-prefix policy table.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer creates a route-policy enforcer from the embedded policy or
// the configured file overrides.
func NewEnforcer(config *EnforcerConfig) (*Enforcer, error) {
	if config == nil {
		config = &EnforcerConfig{}
	}

	var m model.Model
	var err error
	if config.ModelPath != "" && fileExists(config.ModelPath) {
		m, err = model.NewModelFromFile(config.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if config.PolicyPath != "" && fileExists(config.PolicyPath) {
		adapter := fileadapter.NewAdapter(config.PolicyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if config.AutoReload && config.PolicyPath != "" {
		interval := config.ReloadInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		enforcer.StartAutoLoadPolicy(interval)
	}

	return &Enforcer{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy parses and loads the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 4 || strings.TrimSpace(parts[0]) != "p" {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
			return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
		}
	}
	return nil
}

// Inspect evaluates the policy table for a role and path.
//
// restricted reports whether any rule governs the path; rule is the first
// governing pattern. Paths with no governing rule default to "any
// authenticated caller" and return (false, true, ""). allowed reports
// whether the role is in the path's allowed set.
func (e *Enforcer) Inspect(role identity.Role, path string) (restricted, allowed bool, rule string, err error) {
	policies, err := e.enforcer.GetPolicy()
	if err != nil {
		return false, false, "", fmt.Errorf("failed to read policy: %w", err)
	}

	for _, p := range policies {
		if len(p) < 2 {
			continue
		}
		if util.KeyMatch(path, p[1]) {
			restricted = true
			rule = p[1]
			break
		}
	}
	if !restricted {
		return false, true, "", nil
	}

	allowed, err = e.enforcer.Enforce(role.String(), path)
	if err != nil {
		return true, false, rule, fmt.Errorf("enforcement failed: %w", err)
	}
	return true, allowed, rule, nil
}

// Close stops the auto-reload loop if running.
func (e *Enforcer) Close() {
	e.enforcer.StopAutoLoadPolicy()
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	return err == nil && !info.IsDir()
}
