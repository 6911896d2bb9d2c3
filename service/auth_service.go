package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/internal/logging"
	"github.com/layer-3/keyauth/internal/metrics"
	"github.com/layer-3/keyauth/ports"
)

// Flow names used for metrics and logs.
const (
	FlowNonce        = "nonce"
	FlowLogin        = "login"
	FlowRefresh      = "refresh"
	FlowLogout       = "logout"
	FlowAuthenticate = "authenticate"
)

const DefaultAuditTimeout = 2 * time.Second

// AuthService handles authentication business logic
type AuthService struct {
	identities ports.IdentityStore
	verifier   ports.SignatureVerifier
	tokens     *TokenService
	audit      ports.AuditRecorder

	template        core.ChallengeTemplate
	rotateOnFailure bool
	callTimeout     time.Duration
	auditTimeout    time.Duration

	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	auditWG sync.WaitGroup
}

// Option customises an AuthService.
type Option func(*AuthService)

func WithChallengeTemplate(tpl core.ChallengeTemplate) Option {
	return func(s *AuthService) { s.template = tpl }
}

// WithRotateNonceOnFailure makes a failed signature check burn the nonce.
func WithRotateNonceOnFailure(rotate bool) Option {
	return func(s *AuthService) { s.rotateOnFailure = rotate }
}

// WithCallTimeout bounds every identity store and verifier call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *AuthService) { s.callTimeout = d }
}

func WithAuditTimeout(d time.Duration) Option {
	return func(s *AuthService) { s.auditTimeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new authentication service. A nil audit recorder
// disables auditing.
func NewAuthService(
	identities ports.IdentityStore,
	verifier ports.SignatureVerifier,
	tokens *TokenService,
	audit ports.AuditRecorder,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		identities:   identities,
		verifier:     verifier,
		tokens:       tokens,
		audit:        audit,
		callTimeout:  DefaultCallTimeout,
		auditTimeout: DefaultAuditTimeout,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessTTL is the lifetime of access tokens issued by this service.
func (s *AuthService) AccessTTL() time.Duration {
	return s.tokens.AccessTTL()
}

// RequestNonce issues a fresh nonce for address, creating the identity on
// first contact.
func (s *AuthService) RequestNonce(ctx context.Context, address string, meta core.RequestMeta) (challenge *core.NonceChallenge, err error) {
	defer s.observe(FlowNonce, time.Now(), &err)

	addr, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	nonce, err := core.NewNonce()
	if err != nil {
		return nil, core.Wrap(core.CodeServiceUnavailable, err)
	}

	identity, err := s.issueNonce(ctx, addr, nonce)
	if err != nil {
		return nil, err
	}

	s.record(core.AuditEvent{
		Action:     core.AuditNonceIssued,
		IdentityID: identity.ID,
		Address:    identity.Address,
	}, meta)

	return &core.NonceChallenge{
		Address: identity.Address,
		Nonce:   identity.Nonce,
		Message: s.template.Render(identity.Nonce),
	}, nil
}

func (s *AuthService) issueNonce(ctx context.Context, addr, nonce string) (*core.Identity, error) {
	identity, err := s.findByAddress(ctx, addr)
	if err == nil {
		return s.rotateNonce(ctx, identity.ID, nonce)
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	identity, err = s.identities.Create(callCtx, addr, nonce)
	if errors.Is(err, ports.ErrIdentityExists) {
		// Lost the creation race against a concurrent request.
		identity, err = s.findByAddress(ctx, addr)
		if err != nil {
			return nil, err
		}
		return s.rotateNonce(ctx, identity.ID, nonce)
	}
	if err != nil {
		return nil, storeError(err)
	}
	return identity, nil
}

// Login verifies that signature was produced by address over the challenge
// rendered from its current nonce, consumes the nonce and issues a token pair.
func (s *AuthService) Login(ctx context.Context, address, signature string, meta core.RequestMeta) (result *core.LoginResult, err error) {
	defer s.observe(FlowLogin, time.Now(), &err)

	// Address stays empty until it normalizes; raw input is never audited.
	event := core.AuditEvent{Action: core.AuditLoginSucceeded}
	defer func() {
		if err != nil {
			event.Action = core.AuditLoginFailed
			event.Code, _ = core.CodeOf(err)
		}
		s.record(event, meta)
	}()

	addr, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	event.Address = addr

	identity, err := s.findByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	event.IdentityID = identity.ID

	if !identity.Active {
		return nil, core.ErrAccountDisabled
	}

	expected := identity.Nonce
	if err := s.checkSignature(ctx, identity, signature); err != nil {
		if s.rotateOnFailure && errors.Is(err, core.ErrSignatureInvalid) {
			s.burnNonce(ctx, identity)
		}
		return nil, err
	}

	next, err := core.NewNonce()
	if err != nil {
		return nil, core.Wrap(core.CodeServiceUnavailable, err)
	}
	if err := s.consumeNonce(ctx, identity.ID, expected, next); err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(ctx, identity.ID, identity.Address, identity.Role)
	if err != nil {
		return nil, err
	}

	loginAt := s.now()
	identity.LastLoginAt = &loginAt

	return &core.LoginResult{
		Identity: identity.Summary(),
		Tokens:   pair,
	}, nil
}

func (s *AuthService) checkSignature(ctx context.Context, identity *core.Identity, signature string) error {
	message := s.template.Render(identity.Nonce)

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	signer, err := s.verifier.RecoverSigner(callCtx, message, signature)
	if err != nil {
		if callCtx.Err() != nil {
			return core.Wrap(core.CodeServiceUnavailable, callCtx.Err())
		}
		if _, ok := core.CodeOf(err); ok {
			return err
		}
		return core.Wrap(core.CodeSignatureInvalid, err)
	}

	if !core.SameAddress(signer, identity.Address) {
		return core.ErrSignatureInvalid
	}
	return nil
}

// burnNonce replaces the nonce after a failed attempt. Failures are logged
// only; the caller already reports the signature error.
func (s *AuthService) burnNonce(ctx context.Context, identity *core.Identity) {
	next, err := core.NewNonce()
	if err == nil {
		_, err = s.rotateNonce(ctx, identity.ID, next)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to rotate nonce after failed login",
			logging.IdentityID(identity.ID), logging.Error(err))
	}
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked only once the new pair exists, and only one caller can revoke it.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta core.RequestMeta) (pair *core.TokenPair, err error) {
	defer s.observe(FlowRefresh, time.Now(), &err)

	event := core.AuditEvent{Action: core.AuditTokenRefreshed}
	defer func() {
		if err != nil {
			event.Action = core.AuditRefreshFailed
			event.Code, _ = core.CodeOf(err)
		}
		s.record(event, meta)
	}()

	claims, err := s.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	event.IdentityID = claims.IdentityID
	event.Address = claims.Address

	identity, err := s.findByID(ctx, claims.IdentityID)
	if err != nil {
		return nil, err
	}
	if !identity.Active {
		return nil, core.ErrAccountDisabled
	}

	pair, err = s.tokens.IssuePair(ctx, identity.ID, identity.Address, identity.Role)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.consume(ctx, claims); err != nil {
		// Handing out the new pair would leave two live refresh tokens.
		return nil, err
	}

	return pair, nil
}

// Logout revokes the presented token. Other tokens of the same identity stay
// valid until they expire.
func (s *AuthService) Logout(ctx context.Context, accessToken string, meta core.RequestMeta) (err error) {
	defer s.observe(FlowLogout, time.Now(), &err)

	claims, err := s.tokens.Decode(accessToken)
	if err != nil {
		if !errors.Is(err, core.ErrTokenMalformed) {
			err = core.Wrap(core.CodeTokenMalformed, err)
		}
		return err
	}

	if _, err := s.tokens.revoke(ctx, claims); err != nil {
		return err
	}

	s.record(core.AuditEvent{
		Action:     core.AuditLogout,
		IdentityID: claims.IdentityID,
		Address:    claims.Address,
	}, meta)
	return nil
}

// Authenticate validates an access token presented to a protected route.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (claims *core.Claims, err error) {
	defer s.observe(FlowAuthenticate, time.Now(), &err)
	return s.tokens.VerifyAccess(ctx, accessToken)
}

// SetActive enables or disables the identity owning address.
func (s *AuthService) SetActive(ctx context.Context, address string, active bool) (*core.Identity, error) {
	addr, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	identity, err := s.findByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	updated, err := s.identities.SetActive(callCtx, identity.ID, active)
	if err != nil {
		return nil, storeError(err)
	}
	return updated, nil
}

// WaitForAudit blocks until every in-flight audit event was handed to the
// recorder.
func (s *AuthService) WaitForAudit() {
	s.auditWG.Wait()
}

func (s *AuthService) findByAddress(ctx context.Context, addr string) (*core.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	identity, err := s.identities.FindByAddress(ctx, addr)
	if err != nil {
		return nil, storeError(err)
	}
	return identity, nil
}

func (s *AuthService) findByID(ctx context.Context, id string) (*core.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return identity, nil
}

func (s *AuthService) rotateNonce(ctx context.Context, id, nonce string) (*core.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	identity, err := s.identities.RotateNonce(ctx, id, nonce)
	if err != nil {
		return nil, storeError(err)
	}
	return identity, nil
}

func (s *AuthService) consumeNonce(ctx context.Context, id, expected, next string) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	return storeError(s.identities.ConsumeNonce(ctx, id, expected, next))
}

// storeError maps identity store failures onto the closed error set.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrIdentityNotFound):
		return core.Wrap(core.CodeUserNotFound, err)
	case errors.Is(err, ports.ErrNonceMismatch):
		// Another attempt consumed the nonce first.
		return core.Wrap(core.CodeSignatureInvalid, err)
	default:
		return core.Wrap(core.CodeServiceUnavailable, fmt.Errorf("identity store: %w", err))
	}
}

// record hands event to the audit recorder without blocking the flow.
func (s *AuthService) record(event core.AuditEvent, meta core.RequestMeta) {
	if s.audit == nil {
		return
	}

	event.ID = uuid.NewString()
	event.IP = meta.IP
	event.UserAgent = meta.UserAgent
	event.OccurredAt = s.now().UTC()

	s.auditWG.Add(1)
	go func() {
		defer s.auditWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.auditTimeout)
		defer cancel()

		if err := s.audit.Record(ctx, event); err != nil {
			if s.metrics != nil {
				s.metrics.AuditFailures.WithLabelValues(string(event.Action)).Inc()
			}
			s.logger.Warn("failed to record audit event",
				logging.EventID(event.ID),
				slog.String("action", string(event.Action)),
				logging.Error(err))
		}
	}()
}

func (s *AuthService) observe(flow string, start time.Time, err *error) {
	outcome := metrics.OutcomeSuccess
	if *err != nil {
		code, ok := core.CodeOf(*err)
		if !ok {
			code = core.CodeServiceUnavailable
		}
		outcome = string(code)
	}
	s.metrics.ObserveFlow(flow, outcome, time.Since(start))
}
