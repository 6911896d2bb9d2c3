package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
	now     func() time.Time
}

// Option customises a JWTTokenizer.
type Option func(*JWTTokenizer)

// WithIssuer sets the iss claim checked on parse.
func WithIssuer(issuer string) Option {
	return func(j *JWTTokenizer) { j.issuer = issuer }
}

// WithClock overrides the time source used for validation.
func WithClock(now func() time.Time) Option {
	return func(j *JWTTokenizer) { j.now = now }
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, opts ...Option) *JWTTokenizer {
	j := &JWTTokenizer{signKey: signKey, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// Sign converts claims to a signed JWT
func (j *JWTTokenizer) Sign(claims *core.Claims) (string, error) {
	if claims.Kind != core.TokenKindAccess && claims.Kind != core.TokenKindRefresh {
		return "", fmt.Errorf("unknown token kind %q", claims.Kind)
	}
	if claims.Issuer == "" {
		claims.Issuer = j.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, newSessionClaims(claims))

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", claims.Kind, err)
	}

	return signedToken, nil
}

// Parse validates signature, expiry and issuer of a JWT and returns its claims.
func (j *JWTTokenizer) Parse(tokenStr string) (*core.Claims, error) {
	return j.parse(tokenStr, jwt.WithExpirationRequired())
}

// Decode validates only the signature of a JWT.
func (j *JWTTokenizer) Decode(tokenStr string) (*core.Claims, error) {
	return j.parse(tokenStr, jwt.WithoutClaimsValidation())
}

func (j *JWTTokenizer) parse(tokenStr string, opts ...jwt.ParserOption) (*core.Claims, error) {
	// Strict base64 rejects re-encoded segments that would otherwise decode
	// to the same token.
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithStrictDecoding(),
	)
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, j.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.Wrap(core.CodeTokenExpired, err)
		}
		return nil, core.Wrap(core.CodeTokenMalformed, err)
	}

	if claims.Kind == "" || claims.IdentityID == "" || claims.ID == "" {
		return nil, core.Wrap(core.CodeTokenMalformed, errors.New("missing required claims"))
	}

	return claims.toCore(), nil
}

func (j *JWTTokenizer) keyFunc(token *jwt.Token) (interface{}, error) {
	// Validate the signing method
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return &j.signKey.PublicKey, nil
}

// GenerateKey creates a new P-256 signing key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// LoadKey reads a PEM encoded EC private key from path.
func LoadKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	if key.Curve != elliptic.P256() {
		return nil, errors.New("signing key must use the P-256 curve")
	}
	return key, nil
}

// EncodeKey PEM encodes key as an "EC PRIVATE KEY" block.
func EncodeKey(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signing key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}
