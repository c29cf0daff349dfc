package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCodec mints and verifies the signed, self-contained session tokens
// that embed a subject's identity plus a snapshot of their per-workspace
// roles. The embedded snapshot is a cache of the role store, not a source
// of truth; it goes stale the instant the backing store changes.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration

	// now is swappable in tests
	now func() time.Time
}

// sessionJWTClaims is the wire shape of the session token payload
type sessionJWTClaims struct {
	Email string            `json:"email"`
	Roles map[string]string `json:"roles"`
	jwt.RegisteredClaims
}

// NewSessionCodec creates a codec signing with the given symmetric secret.
// Minted tokens expire after ttl.
func NewSessionCodec(secret []byte, ttl time.Duration) *SessionCodec {
	return &SessionCodec{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint serializes and signs a session token for the subject with the given
// role map snapshot. Identical inputs minted at different times produce
// different tokens because issued_at differs; freshness matters for expiry.
func (c *SessionCodec) Mint(subjectID, email string, roles RoleMap) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("subject id is required")
	}

	rawRoles := make(map[string]string, len(roles))
	for workspaceID, role := range roles {
		if !role.Valid() {
			return "", fmt.Errorf("workspace %s: unknown role %q", workspaceID, role)
		}
		rawRoles[workspaceID] = string(role)
	}

	now := c.now()
	claims := sessionJWTClaims{
		Email: email,
		Roles: rawRoles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns its claims.
// Expired or tampered tokens yield an error and never a partial payload.
func (c *SessionCodec) Verify(rawToken string) (*SessionClaims, error) {
	var claims sessionJWTClaims

	token, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("session token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("session token is not valid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("session token has no subject")
	}

	roles, err := ParseRoleMap(claims.Roles)
	if err != nil {
		return nil, fmt.Errorf("session token carries malformed roles: %w", err)
	}

	out := &SessionClaims{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Roles:     roles,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
