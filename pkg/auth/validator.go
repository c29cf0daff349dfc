package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// IdentityVerifier verifies a raw identity token and extracts the subject
// identity claims. Implementations must treat every verification failure
// (expired, malformed, bad signature, wrong audience, unreachable key set)
// as a single "invalid identity token" outcome.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*IdentityClaims, error)
}

// IdentityValidatorConfig configures the OIDC identity validator
type IdentityValidatorConfig struct {
	// IssuerURL is the OIDC issuer; its JWKS endpoint is discovered and
	// the signing keys cached by the underlying library.
	IssuerURL string

	// Audience is the expected audience (client ID) of identity tokens
	Audience string
}

// IdentityValidator validates externally issued identity tokens against the
// issuer's published signing keys. The provider is discovered lazily on
// first use so an unreachable issuer degrades to a validation failure
// instead of failing service startup.
type IdentityValidator struct {
	config IdentityValidatorConfig

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

// NewIdentityValidator creates a validator for the given issuer and audience
func NewIdentityValidator(config IdentityValidatorConfig) *IdentityValidator {
	return &IdentityValidator{config: config}
}

// Verify validates the raw token's signature, expiry, issuer, and audience,
// and returns the identity claims. Callers must treat any error as
// INVALID_IDENTITY_TOKEN; the internal distinction is not surfaced.
func (v *IdentityValidator) Verify(ctx context.Context, rawToken string) (*IdentityClaims, error) {
	verifier, err := v.getVerifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity provider unavailable: %w", err)
	}

	idToken, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("identity token verification failed: %w", err)
	}

	var raw struct {
		ObjectID          string `json:"oid"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
	}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse identity claims: %w", err)
	}

	claims := &IdentityClaims{
		SubjectID:   raw.ObjectID,
		Email:       raw.Email,
		DisplayName: raw.Name,
	}
	// Directory object ID is preferred as the stable subject; fall back to
	// the standard subject claim.
	if claims.SubjectID == "" {
		claims.SubjectID = idToken.Subject
	}
	if claims.Email == "" {
		claims.Email = raw.PreferredUsername
	}
	if claims.DisplayName == "" {
		claims.DisplayName = claims.Email
	}

	if claims.SubjectID == "" {
		return nil, fmt.Errorf("identity token has no usable subject claim")
	}

	return claims, nil
}

// getVerifier discovers the OIDC provider on first use and reuses the
// verifier (and its cached key set) afterwards.
func (v *IdentityValidator) getVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.verifier != nil {
		return v.verifier, nil
	}

	provider, err := oidc.NewProvider(ctx, v.config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	v.verifier = provider.Verifier(&oidc.Config{ClientID: v.config.Audience})
	return v.verifier, nil
}
