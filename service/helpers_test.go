package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/keyauth/adapters/identity"
	"github.com/layer-3/keyauth/adapters/signature"
	"github.com/layer-3/keyauth/adapters/store"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type auditSpy struct {
	mu     sync.Mutex
	events []core.AuditEvent
	err    error
}

func (a *auditSpy) Record(ctx context.Context, event core.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return a.err
}

func (a *auditSpy) actions() []core.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.AuditAction, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

// find returns the most recent event with action. Events are recorded
// asynchronously, so tests look them up by action rather than position.
func (a *auditSpy) find(t *testing.T, action core.AuditAction) core.AuditEvent {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].Action == action {
			return a.events[i]
		}
	}
	t.Fatalf("no %s audit event recorded", action)
	return core.AuditEvent{}
}

// faultyIdentities injects errors into selected identity store calls.
type faultyIdentities struct {
	ports.IdentityStore
	mu          sync.Mutex
	findByIDErr error
	consumeErr  error
	delay       time.Duration
}

func (f *faultyIdentities) setFindByIDErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findByIDErr = err
}

func (f *faultyIdentities) FindByID(ctx context.Context, id string) (*core.Identity, error) {
	f.mu.Lock()
	err := f.findByIDErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.IdentityStore.FindByID(ctx, id)
}

func (f *faultyIdentities) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.IdentityStore.FindByAddress(ctx, address)
}

func (f *faultyIdentities) ConsumeNonce(ctx context.Context, id, expected, next string) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	return f.IdentityStore.ConsumeNonce(ctx, id, expected, next)
}

// faultyRevocations injects errors into revocation store calls.
type faultyRevocations struct {
	ports.RevocationStore
	mu        sync.Mutex
	revokeErr error
	checkErr  error
}

func (f *faultyRevocations) setRevokeErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeErr = err
}

func (f *faultyRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	err := f.revokeErr
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.RevocationStore.Revoke(ctx, tokenID, ttl)
}

func (f *faultyRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.RevocationStore.IsRevoked(ctx, tokenID)
}

// faultyTokenizer fails Sign while failSign is set.
type faultyTokenizer struct {
	ports.Tokenizer
	mu       sync.Mutex
	failSign error
}

func (f *faultyTokenizer) setFailSign(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSign = err
}

func (f *faultyTokenizer) Sign(claims *core.Claims) (string, error) {
	f.mu.Lock()
	err := f.failSign
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.Tokenizer.Sign(claims)
}

type fixture struct {
	svc         *AuthService
	tokens      *TokenService
	identities  *faultyIdentities
	memIDs      *identity.MemoryStore
	revocations *faultyRevocations
	memRevoked  *store.MemoryStore
	tokenizer   *faultyTokenizer
	audit       *auditSpy
	clock       *fakeClock

	wallet  *ecdsa.PrivateKey
	address string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := newFakeClock()
	key, err := tokenizer.GenerateKey()
	require.NoError(t, err)

	f := &fixture{
		memIDs:     identity.NewMemoryStore(),
		memRevoked: store.NewMemoryStore(),
		audit:      &auditSpy{},
		clock:      clock,
	}
	f.identities = &faultyIdentities{IdentityStore: f.memIDs}
	f.revocations = &faultyRevocations{RevocationStore: f.memRevoked}
	f.tokenizer = &faultyTokenizer{
		Tokenizer: tokenizer.NewJWTTokenizer(key, tokenizer.WithIssuer("keyauth-test"), tokenizer.WithClock(clock.Now)),
	}
	f.tokens = NewTokenService(f.tokenizer, f.revocations,
		WithTokenIssuer("keyauth-test"),
		WithTokenClock(clock.Now),
	)

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	f.svc = NewAuthService(f.identities, signature.NewEthereumVerifier(), f.tokens, f.audit, opts...)
	t.Cleanup(f.svc.WaitForAudit)

	f.wallet, err = crypto.GenerateKey()
	require.NoError(t, err)
	f.address = crypto.PubkeyToAddress(f.wallet.PublicKey).Hex()

	return f
}

func (f *fixture) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := signature.Sign(message, f.wallet)
	require.NoError(t, err)
	return sig
}

// login runs the nonce and login flows for the fixture wallet.
func (f *fixture) login(t *testing.T) *core.LoginResult {
	t.Helper()
	ctx := context.Background()

	challenge, err := f.svc.RequestNonce(ctx, f.address, core.RequestMeta{})
	require.NoError(t, err)

	result, err := f.svc.Login(ctx, f.address, f.sign(t, challenge.Message), core.RequestMeta{})
	require.NoError(t, err)
	return result
}

func toLower(s string) string { return strings.ToLower(s) }

func toUpper(s string) string { return strings.ToUpper(s) }

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// flipSignaturePadding changes the unused low bits of the last signature
// character. Lenient base64 decodes the result to the same signature.
func flipSignaturePadding(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	idx := strings.IndexByte(base64URLAlphabet, sig[len(sig)-1])
	sig[len(sig)-1] = base64URLAlphabet[idx^1]
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}

// highS replaces the ES256 signature (r, s) with (r, n-s), which verifies
// against the same payload.
func highS(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	require.Len(t, sig, 64)

	s := new(big.Int).SetBytes(sig[32:])
	s.Sub(elliptic.P256().Params().N, s)
	s.FillBytes(sig[32:])

	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}
