// Package signature recovers Ethereum signers of personal_sign messages.
package signature

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// EthereumVerifier implements ports.SignatureVerifier for EIP-191 signatures.
type EthereumVerifier struct{}

// NewEthereumVerifier creates a verifier.
func NewEthereumVerifier() *EthereumVerifier {
	return &EthereumVerifier{}
}

var _ ports.SignatureVerifier = (*EthereumVerifier)(nil)

// RecoverSigner returns the checksummed address that produced signature over
// message.
func (v *EthereumVerifier) RecoverSigner(ctx context.Context, message, signature string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", core.Wrap(core.CodeSignatureInvalid, fmt.Errorf("failed to decode signature: %w", err))
	}
	if len(sig) != crypto.SignatureLength {
		return "", core.Wrap(core.CodeSignatureInvalid, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength))
	}

	// Wallets emit V as 27/28, recovery expects 0/1
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return "", core.Wrap(core.CodeSignatureInvalid, fmt.Errorf("invalid recovery id %d", sig[crypto.RecoveryIDOffset]))
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", core.Wrap(core.CodeSignatureInvalid, err)
	}

	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// Sign produces a personal_sign signature with V in {27, 28}. It is the
// wallet side of RecoverSigner, used by tooling and tests.
func Sign(message string, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
