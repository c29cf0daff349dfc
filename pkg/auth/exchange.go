package auth

import (
	"context"

	"github.com/atriumhq/atrium/pkg/observability"
)

// RoleStore reads the authoritative (subject, workspace) -> role mapping
// from persistent storage.
type RoleStore interface {
	// GetRoles returns the subject's full current role map. Subjects with
	// no memberships get an empty, non-nil map.
	GetRoles(ctx context.Context, subjectID string) (RoleMap, error)
}

// ExchangeService orchestrates token exchange and refresh: validate the
// external identity token, load the subject's current roles, and mint a
// session token embedding the role snapshot.
type ExchangeService struct {
	verifier IdentityVerifier
	codec    *SessionCodec
	roles    RoleStore
	logger   *observability.Logger
}

// NewExchangeService creates an exchange service
func NewExchangeService(verifier IdentityVerifier, codec *SessionCodec, roles RoleStore, logger *observability.Logger) *ExchangeService {
	return &ExchangeService{
		verifier: verifier,
		codec:    codec,
		roles:    roles,
		logger:   logger,
	}
}

// Exchange validates an identity token and mints a session token embedding
// the subject's current role map. If the role store is unavailable the
// exchange proceeds with an empty role map: a brand-new or role-less user
// must still be able to authenticate to create their first workspace.
func (s *ExchangeService) Exchange(ctx context.Context, identityToken string) (*ExchangeResult, error) {
	if identityToken == "" {
		return nil, ErrMissingIdentityToken
	}

	claims, err := s.verifier.Verify(ctx, identityToken)
	if err != nil {
		s.logger.WithError(err).Warn("identity token validation failed")
		return nil, ErrInvalidIdentityToken
	}

	roles, err := s.roles.GetRoles(ctx, claims.SubjectID)
	if err != nil {
		s.logger.WithError(err).WithField("subject_id", claims.SubjectID).
			Warn("role store unavailable, continuing exchange with empty roles")
		roles = RoleMap{}
	}

	token, err := s.codec.Mint(claims.SubjectID, claims.Email, roles)
	if err != nil {
		return nil, err
	}

	return &ExchangeResult{
		SubjectID:    claims.SubjectID,
		Email:        claims.Email,
		DisplayName:  claims.DisplayName,
		SessionToken: token,
		Roles:        roles,
	}, nil
}

// Refresh validates both the identity token and the prior session token,
// cross-checks that they belong to the same subject, reloads the role map
// fresh from the store, and mints a new session token. This is the only
// mechanism by which a stale client-held token picks up roles granted after
// it was minted; the server never rotates tokens on its own.
func (s *ExchangeService) Refresh(ctx context.Context, identityToken, sessionToken string) (*ExchangeResult, error) {
	if identityToken == "" {
		return nil, ErrMissingIdentityToken
	}
	if sessionToken == "" {
		return nil, ErrMissingSessionToken
	}

	claims, err := s.verifier.Verify(ctx, identityToken)
	if err != nil {
		s.logger.WithError(err).Warn("identity token validation failed on refresh")
		return nil, ErrInvalidIdentityToken
	}

	prior, err := s.codec.Verify(sessionToken)
	if err != nil {
		s.logger.WithError(err).Warn("prior session token rejected on refresh")
		return nil, ErrInvalidSessionToken
	}

	if claims.SubjectID != prior.SubjectID {
		return nil, ErrTokenMismatch
	}

	// Never reuse the prior token's embedded map as the new source of
	// truth; the store is reloaded fresh. On store failure the prior map
	// is the best-effort continuity fallback.
	roles, err := s.roles.GetRoles(ctx, claims.SubjectID)
	if err != nil {
		s.logger.WithError(err).WithField("subject_id", claims.SubjectID).
			Warn("role store unavailable on refresh, falling back to prior role snapshot")
		roles = prior.Roles.Clone()
	}

	token, err := s.codec.Mint(claims.SubjectID, claims.Email, roles)
	if err != nil {
		return nil, err
	}

	return &ExchangeResult{
		SubjectID:    claims.SubjectID,
		Email:        claims.Email,
		DisplayName:  claims.DisplayName,
		SessionToken: token,
		Roles:        roles,
	}, nil
}
