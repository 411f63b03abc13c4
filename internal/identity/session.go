// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Standard session errors.
var (
	// ErrNoCredential indicates the request carried no session credential.
	ErrNoCredential = errors.New("no credential provided")

	// ErrInvalidCredential indicates the credential failed verification
	// (bad signature, expired, malformed).
	ErrInvalidCredential = errors.New("invalid credential")
)

// Session is the verified inbound credential plus any side effects
// produced while reading it.
type Session struct {
	// SubjectID is the verified subject ('sub' claim).
	SubjectID string

	// Name is the display name claim, if present.
	Name string

	// TenantClaim and RoleClaim are the issuer-embedded authorization
	// claims. HasClaims reports whether both are present and well-formed;
	// when false the resolver falls back to the profile directory.
	TenantClaim string
	RoleClaim   string
	HasClaims   bool

	// RefreshedToken is a replacement token minted when the inbound one
	// was close to expiry. The gateway must copy it onto the outbound
	// response; dropping it silently breaks session continuity.
	RefreshedToken string
}

// SessionProvider reads and verifies the inbound credential.
type SessionProvider interface {
	// ReadSession extracts the session from the request. Returns
	// ErrNoCredential when none is present and ErrInvalidCredential when
	// verification fails.
	ReadSession(r *http.Request) (*Session, error)
}

// SessionClaims is the JWT claim shape minted by the session issuer.
type SessionClaims struct {
	Name   string `json:"name,omitempty"`
	Tenant string `json:"tid,omitempty"`
	Role   string `json:"rol,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig configures the JWT session provider.
type JWTConfig struct {
	// Secret signs and verifies tokens (HS256).
	Secret string

	// CookieName is the session cookie to read.
	CookieName string

	// HeaderName optionally reads a bearer token from this header first.
	HeaderName string

	// TTL is the lifetime of refreshed tokens.
	TTL time.Duration

	// RefreshWindow triggers a sliding refresh when a token's remaining
	// life drops below it. Zero disables refresh.
	RefreshWindow time.Duration
}

// JWTSessionProvider verifies HS256 session tokens from a cookie or bearer
// header and mints sliding refresh tokens.
type JWTSessionProvider struct {
	cfg    JWTConfig
	secret []byte
	clock  func() time.Time
}

// NewJWTSessionProvider creates a provider. The secret must be non-empty.
func NewJWTSessionProvider(cfg JWTConfig) (*JWTSessionProvider, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "tg_session"
	}
	return &JWTSessionProvider{
		cfg:    cfg,
		secret: []byte(cfg.Secret),
		clock:  time.Now,
	}, nil
}

// WithClock overrides the clock for testing.
func (p *JWTSessionProvider) WithClock(clock func() time.Time) *JWTSessionProvider {
	p.clock = clock
	return p
}

// ReadSession extracts and verifies the session token.
func (p *JWTSessionProvider) ReadSession(r *http.Request) (*Session, error) {
	raw := p.extractToken(r)
	if raw == "" {
		return nil, ErrNoCredential
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.clock))
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredential
	}
	if claims.Subject == "" {
		return nil, ErrInvalidCredential
	}

	sess := &Session{
		SubjectID:   claims.Subject,
		Name:        claims.Name,
		TenantClaim: claims.Tenant,
		RoleClaim:   claims.Role,
	}
	if claims.Tenant != "" && claims.Role != "" {
		if _, err := ParseRole(claims.Role); err == nil {
			sess.HasClaims = true
		}
	}

	if refreshed := p.maybeRefresh(claims); refreshed != "" {
		sess.RefreshedToken = refreshed
	}

	return sess, nil
}

// extractToken reads the raw token from the header (bearer) or cookie.
func (p *JWTSessionProvider) extractToken(r *http.Request) string {
	if p.cfg.HeaderName != "" {
		if v := r.Header.Get(p.cfg.HeaderName); v != "" {
			return strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
		}
	}
	if cookie, err := r.Cookie(p.cfg.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// maybeRefresh mints a replacement token when the inbound one is inside
// the refresh window. The replacement carries identical claims with a new
// expiry.
func (p *JWTSessionProvider) maybeRefresh(claims *SessionClaims) string {
	if p.cfg.RefreshWindow <= 0 || claims.ExpiresAt == nil {
		return ""
	}
	now := p.clock()
	if claims.ExpiresAt.Time.Sub(now) > p.cfg.RefreshWindow {
		return ""
	}

	fresh := &SessionClaims{
		Name:   claims.Name,
		Tenant: claims.Tenant,
		Role:   claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, fresh).SignedString(p.secret)
	if err != nil {
		// Refresh is best-effort; the inbound token is still valid.
		return ""
	}
	return signed
}

// MintToken signs a session token for the given subject and claims.
// Used by the session issuer and by tests.
func (p *JWTSessionProvider) MintToken(subjectID, name, tenantID string, role Role, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = p.cfg.TTL
	}
	now := p.clock()
	claims := &SessionClaims{
		Name:   name,
		Tenant: tenantID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
