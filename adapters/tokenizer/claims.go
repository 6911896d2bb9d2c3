package tokenizer

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/keyauth/core"
)

// SessionClaims combines standard claims with identity-specific ones
type SessionClaims struct {
	jwt.RegisteredClaims
	IdentityID string         `json:"uid"`
	Role       core.Role      `json:"role"`
	Kind       core.TokenKind `json:"kind"`
}

func newSessionClaims(c *core.Claims) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			Subject:   c.Address,
			ID:        c.TokenID,
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			Audience:  jwt.ClaimStrings{audienceFor(c.Kind)},
		},
		IdentityID: c.IdentityID,
		Role:       c.Role,
		Kind:       c.Kind,
	}
}

func (c *SessionClaims) toCore() *core.Claims {
	claims := &core.Claims{
		TokenID:    c.ID,
		IdentityID: c.IdentityID,
		Address:    c.Subject,
		Role:       c.Role,
		Kind:       c.Kind,
		Issuer:     c.Issuer,
	}
	if c.IssuedAt != nil {
		claims.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		claims.ExpiresAt = c.ExpiresAt.Time
	}
	return claims
}

const (
	AudienceAccess  = "session:access"
	AudienceRefresh = "session:refresh"
)

func audienceFor(kind core.TokenKind) string {
	if kind == core.TokenKindRefresh {
		return AudienceRefresh
	}
	return AudienceAccess
}
