package core

import "time"

// Role is the coarse permission level of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// TokenKind discriminates access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Identity represents a wallet holder known to the service
type Identity struct {
	ID          string     // Opaque identifier (UUIDv7)
	Address     string     // Checksummed Ethereum address, unique
	Nonce       string     // Current single-use login nonce
	Role        Role       // Permission level
	Active      bool       // Disabled identities cannot log in or refresh
	CreatedAt   time.Time  // When the identity was first seen
	UpdatedAt   time.Time  // Last mutation
	LastLoginAt *time.Time // Last successful login, nil if never
}

// Summary returns the public view of the identity.
func (i *Identity) Summary() IdentitySummary {
	return IdentitySummary{
		ID:          i.ID,
		Address:     i.Address,
		Role:        i.Role,
		LastLoginAt: i.LastLoginAt,
	}
}

// IdentitySummary is the part of an identity returned to clients.
type IdentitySummary struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Role        Role       `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Claims are the identity claims embedded in every issued token
type Claims struct {
	TokenID    string    // Unique token identifier (jti)
	IdentityID string    // Identity the token was issued to
	Address    string    // Checksummed address of the identity
	Role       Role      // Role at issuance time
	Kind       TokenKind // access or refresh
	Issuer     string    // Issuing service
	IssuedAt   time.Time // When the token was minted
	ExpiresAt  time.Time // When the token stops being valid
}

// TokenPair is a freshly minted access/refresh credential pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// NonceChallenge is returned to a wallet that asked to sign in.
type NonceChallenge struct {
	Address string
	Nonce   string
	Message string
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Identity IdentitySummary
	Tokens   *TokenPair
}

// RequestMeta carries caller information for audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
}
