package core

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// NonceBytes is the entropy of a login nonce.
const NonceBytes = 32

// NoncePlaceholder marks where the nonce goes in a challenge template.
const NoncePlaceholder = "{nonce}"

// DefaultChallengeTemplate is the message wallets are asked to sign.
const DefaultChallengeTemplate = "Sign this message to authenticate with keyauth.\n\nNonce: {nonce}"

// NewNonce generates a fresh hex encoded random nonce.
func NewNonce() (string, error) {
	b := make([]byte, NonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ChallengeTemplate renders the human readable sign-in message.
type ChallengeTemplate struct {
	template string
}

// NewChallengeTemplate validates tpl. It must contain the nonce placeholder
// exactly once.
func NewChallengeTemplate(tpl string) (ChallengeTemplate, error) {
	if strings.Count(tpl, NoncePlaceholder) != 1 {
		return ChallengeTemplate{}, errors.New("challenge template must contain {nonce} exactly once")
	}
	return ChallengeTemplate{template: tpl}, nil
}

// Render substitutes nonce into the template.
func (t ChallengeTemplate) Render(nonce string) string {
	tpl := t.template
	if tpl == "" {
		tpl = DefaultChallengeTemplate
	}
	return strings.Replace(tpl, NoncePlaceholder, nonce, 1)
}
