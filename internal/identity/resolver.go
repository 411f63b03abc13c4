// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package identity

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tenantgate/internal/logging"
	"github.com/tomtom215/tenantgate/internal/metrics"
)

// BreakerConfig configures the circuit breaker guarding profile fallback
// reads. The breaker keeps a failing directory from adding latency to
// every claim-less request; while open, resolution fails closed.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure count that opens the breaker.
	MaxFailures uint32

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Resolver produces a CallerIdentity (or anonymous) for each request.
type Resolver struct {
	sessions SessionProvider
	profiles ProfileDirectory
	breaker  *gobreaker.CircuitBreaker[*Profile]
}

// NewResolver creates a resolver over the given session provider and
// profile directory.
func NewResolver(sessions SessionProvider, profiles ProfileDirectory, bc BreakerConfig) *Resolver {
	if bc.MaxFailures == 0 {
		bc.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if bc.OpenTimeout == 0 {
		bc.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[*Profile](gobreaker.Settings{
		Name:    "profile-directory",
		Timeout: bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.MaxFailures
		},
		// A missing profile is a valid answer from a healthy directory,
		// not a failure that should trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProfileNotFound)
		},
	})

	return &Resolver{
		sessions: sessions,
		profiles: profiles,
		breaker:  breaker,
	}
}

// Resolve establishes the caller's identity for one request.
//
// The returned identity is nil for anonymous callers. The returned session
// may be non-nil even when the identity is nil so that refreshed tokens
// still propagate. Identities are built fresh per request and must not be
// retained beyond it.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*CallerIdentity, *Session) {
	sess, err := r.sessions.ReadSession(req)
	if err != nil {
		if !errors.Is(err, ErrNoCredential) {
			logging.Ctx(ctx).Debug().Err(err).Msg("Rejected session credential")
		}
		return nil, nil
	}

	// Fast path: issuer-embedded claims, no I/O.
	if sess.HasClaims {
		role, err := ParseRole(sess.RoleClaim)
		if err != nil {
			// HasClaims guarantees a parseable role; unreachable unless
			// the provider contract is broken. Fall through to the
			// directory rather than trusting a malformed claim.
			logging.Ctx(ctx).Warn().Str("subject", sess.SubjectID).Msg("Malformed role claim on fast path")
		} else {
			return &CallerIdentity{
				SubjectID: sess.SubjectID,
				Tenant:    sess.TenantClaim,
				Role:      role,
				Name:      sess.Name,
				Source:    SourceToken,
			}, sess
		}
	}

	// Fallback: one authoritative directory read, guarded by the breaker.
	metrics.RecordDirectoryFallback()
	profile, err := r.breaker.Execute(func() (*Profile, error) {
		return r.profiles.LookupBySubjectID(ctx, sess.SubjectID)
	})
	switch {
	case err == nil:
		name := sess.Name
		if name == "" {
			name = profile.Name
		}
		return &CallerIdentity{
			SubjectID: sess.SubjectID,
			Tenant:    profile.TenantID,
			Role:      profile.Role,
			Name:      name,
			Source:    SourceDirectory,
		}, sess
	case errors.Is(err, ErrProfileNotFound):
		// Valid credential with no profile row. Treated as anonymous but
		// flagged: this is either a deprovisioned account still holding a
		// token or an issuance bug.
		metrics.RecordOrphanedCredential()
		logging.Ctx(ctx).Warn().
			Str("subject", sess.SubjectID).
			Msg("Credential with no profile row, treating as anonymous")
		return nil, sess
	default:
		// Directory unavailable or breaker open. Fail closed.
		logging.Ctx(ctx).Error().Err(err).
			Str("subject", sess.SubjectID).
			Msg("Profile directory unavailable, treating caller as anonymous")
		return nil, sess
	}
}
