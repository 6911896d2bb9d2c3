package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

const (
	DefaultAccessTTL   = 5 * time.Minute
	DefaultRefreshTTL  = 5 * 24 * time.Hour // 5 days
	DefaultCallTimeout = 3 * time.Second
)

// TokenService mints, verifies and revokes access/refresh credential pairs
type TokenService struct {
	tokenizer   ports.Tokenizer
	revocations ports.RevocationStore

	accessTTL   time.Duration
	refreshTTL  time.Duration
	issuer      string
	callTimeout time.Duration
	now         func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

func WithTokenTTLs(access, refresh time.Duration) TokenOption {
	return func(s *TokenService) {
		s.accessTTL = access
		s.refreshTTL = refresh
	}
}

func WithTokenIssuer(issuer string) TokenOption {
	return func(s *TokenService) { s.issuer = issuer }
}

// WithRevocationTimeout bounds every revocation store call.
func WithRevocationTimeout(d time.Duration) TokenOption {
	return func(s *TokenService) { s.callTimeout = d }
}

// WithTokenClock overrides the time source. It must agree with the
// tokenizer's clock.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a new token service
func NewTokenService(tokenizer ports.Tokenizer, revocations ports.RevocationStore, opts ...TokenOption) *TokenService {
	s := &TokenService{
		tokenizer:   tokenizer,
		revocations: revocations,
		accessTTL:   DefaultAccessTTL,
		refreshTTL:  DefaultRefreshTTL,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessTTL is the lifetime of newly issued access tokens.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssuePair mints an access and a refresh token carrying the same identity
// claims.
func (s *TokenService) IssuePair(ctx context.Context, identityID, address string, role core.Role) (*core.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.Wrap(core.CodeServiceUnavailable, err)
	}

	// JWT timestamps have second precision.
	now := s.now().Truncate(time.Second)

	access, err := s.mint(identityID, address, role, core.TokenKindAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.mint(identityID, address, role, core.TokenKindRefresh, now, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &core.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

func (s *TokenService) mint(identityID, address string, role core.Role, kind core.TokenKind, now time.Time, ttl time.Duration) (string, error) {
	claims := &core.Claims{
		TokenID:    uuid.NewString(),
		IdentityID: identityID,
		Address:    address,
		Role:       role,
		Kind:       kind,
		Issuer:     s.issuer,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}

	token, err := s.tokenizer.Sign(claims)
	if err != nil {
		return "", core.Wrap(core.CodeServiceUnavailable, fmt.Errorf("failed to create %s token: %w", kind, err))
	}
	return token, nil
}

// VerifyAccess validates an access token and checks it was not revoked.
func (s *TokenService) VerifyAccess(ctx context.Context, token string) (*core.Claims, error) {
	return s.verify(ctx, token, core.TokenKindAccess)
}

// VerifyRefresh validates a refresh token and checks it was not revoked.
func (s *TokenService) VerifyRefresh(ctx context.Context, token string) (*core.Claims, error) {
	return s.verify(ctx, token, core.TokenKindRefresh)
}

// verify checks signature, expiry, kind and revocation, in that order.
func (s *TokenService) verify(ctx context.Context, token string, kind core.TokenKind) (*core.Claims, error) {
	claims, err := s.tokenizer.Parse(token)
	if err != nil {
		return nil, err
	}

	if claims.Kind != kind {
		return nil, core.Wrap(core.CodeWrongTokenKind, fmt.Errorf("expected %s token, got %s", kind, claims.Kind))
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, core.Wrap(core.CodeServiceUnavailable, fmt.Errorf("failed to check token revocation: %w", err))
	}
	if revoked {
		return nil, core.ErrTokenRevoked
	}

	return claims, nil
}

// Decode returns the claims of a correctly signed token, expired or not.
func (s *TokenService) Decode(token string) (*core.Claims, error) {
	return s.tokenizer.Decode(token)
}

// RemainingTTL is the time until claims expire, floored at zero.
func (s *TokenService) RemainingTTL(claims *core.Claims) time.Duration {
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Revoke blacklists the token ID for the rest of the token's lifetime.
// Expired tokens need no entry.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	claims, err := s.Decode(token)
	if err != nil {
		return err
	}
	_, err = s.revoke(ctx, claims)
	return err
}

// consume revokes a verified token and fails with ErrTokenRevoked when
// another caller revoked it first. Used to keep refresh tokens single use.
func (s *TokenService) consume(ctx context.Context, claims *core.Claims) error {
	added, err := s.revoke(ctx, claims)
	if err != nil {
		return err
	}
	if !added && s.RemainingTTL(claims) > 0 {
		return core.ErrTokenRevoked
	}
	return nil
}

func (s *TokenService) revoke(ctx context.Context, claims *core.Claims) (bool, error) {
	ttl := s.RemainingTTL(claims)
	if ttl <= 0 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	added, err := s.revocations.Revoke(ctx, claims.TokenID, ttl)
	if err != nil {
		return false, core.Wrap(core.CodeServiceUnavailable, fmt.Errorf("failed to revoke token: %w", err))
	}
	return added, nil
}
