// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// minJWTSecretLen is the minimum secret length accepted in production.
const minJWTSecretLen = 32

// Validate checks the configuration for structural and cross-field errors.
// Struct tags cover per-field constraints; production-only and relational
// rules are checked by hand.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}

	if c.Server.Environment == "production" {
		if len(c.Session.JWTSecret) < minJWTSecretLen {
			return fmt.Errorf("session.jwt_secret must be at least %d characters in production", minJWTSecretLen)
		}
		if !c.Session.CookieSecure {
			return errors.New("session.cookie_secure must be true in production")
		}
	}

	if c.Session.RefreshWindow >= c.Session.TTL {
		return errors.New("session.refresh_window must be shorter than session.ttl")
	}

	for _, prefix := range c.Gateway.AuthExemptPrefixes {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("gateway.auth_exempt_prefixes entry %q must start with /", prefix)
		}
	}

	for _, alias := range c.Gateway.ReservedAliases {
		if alias != strings.ToLower(alias) {
			return fmt.Errorf("gateway.reserved_aliases entry %q must be lowercase", alias)
		}
	}

	if c.Directory.Backend == "badger" && c.Directory.BadgerPath == "" {
		return errors.New("directory.badger_path is required for the badger backend")
	}
	if c.Audit.Backend == "duckdb" && c.Audit.DuckDBPath == "" {
		return errors.New("audit.duckdb_path is required for the duckdb backend")
	}

	return nil
}
