package ports

import (
	"context"

	"github.com/layer-3/keyauth/core"
)

// Tokenizer converts between claims and signed token strings
type Tokenizer interface {
	// Sign mints a token carrying claims.
	Sign(claims *core.Claims) (string, error)

	// Parse verifies the signature and time validity of token.
	Parse(token string) (*core.Claims, error)

	// Decode verifies the signature only; expired tokens still decode.
	Decode(token string) (*core.Claims, error)
}

// SignatureVerifier recovers the address that signed a message
type SignatureVerifier interface {
	RecoverSigner(ctx context.Context, message, signature string) (string, error)
}
