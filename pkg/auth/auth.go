// Package auth verifies bearer tokens and carries the authenticated owner
// through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthorized indicates a missing, malformed, or rejected bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// Claims are the token claims read by the verifier.
type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
}

// Verifier resolves a bearer token to the owning user's id.
type Verifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

type jwtVerifier struct {
	keyfunc jwt.Keyfunc
	options []jwt.ParserOption
	role    string
	logger  *slog.Logger
}

// New returns the Verifier described by cfg. When verification is disabled
// every request is attributed to cfg.DevOwner. The JWKS keys are refreshed in
// the background until ctx is cancelled.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (Verifier, error) {
	if !cfg.Enabled {
		logger.Warn("bearer token verification disabled", "owner", cfg.DevOwner)
		return Static(cfg.DevOwnerID()), nil
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL})
	if err != nil {
		return nil, fmt.Errorf("create jwks client: %w", err)
	}

	logger.Info("token verifier initialized", "jwks_url", cfg.JWKSURL)
	return NewWithKeyfunc(jwks.Keyfunc, cfg, logger), nil
}

// NewWithKeyfunc returns a token Verifier that resolves signing keys through kf.
func NewWithKeyfunc(kf jwt.Keyfunc, cfg *Config, logger *slog.Logger) Verifier {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &jwtVerifier{
		keyfunc: kf,
		options: options,
		role:    cfg.Role,
		logger:  logger.With("system", "auth"),
	}
}

func (v *jwtVerifier) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrUnauthorized
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, v.keyfunc, v.options...); err != nil {
		v.logger.Debug("token rejected", "error", err)
		return uuid.Nil, ErrUnauthorized
	}

	if v.role != "" && claims.Role != v.role {
		v.logger.Debug("token role rejected", "role", claims.Role, "expected", v.role)
		return uuid.Nil, ErrUnauthorized
	}

	owner, err := uuid.Parse(claims.Subject)
	if err != nil {
		v.logger.Debug("token subject is not a uuid", "subject", claims.Subject)
		return uuid.Nil, ErrUnauthorized
	}

	return owner, nil
}

type static uuid.UUID

// Static returns a Verifier that accepts any token, including none, as owner.
func Static(owner uuid.UUID) Verifier {
	return static(owner)
}

func (s static) Verify(context.Context, string) (uuid.UUID, error) {
	return uuid.UUID(s), nil
}

type ownerKey struct{}

// WithOwner returns a copy of ctx carrying the owner id.
func WithOwner(ctx context.Context, owner uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// Owner returns the owner id stored by WithOwner.
func Owner(ctx context.Context) (uuid.UUID, bool) {
	owner, ok := ctx.Value(ownerKey{}).(uuid.UUID)
	return owner, ok
}
