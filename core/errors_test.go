package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	cause := errors.New("redis: connection refused")
	err := fmt.Errorf("refresh: %w", Wrap(CodeServiceUnavailable, cause))

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTokenRevoked)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "token has been revoked", ErrTokenRevoked.Error())
	assert.Equal(t, "invalid signature: bad v", Wrap(CodeSignatureInvalid, errors.New("bad v")).Error())
	assert.Equal(t, "SOMETHING", (&Error{Code: "SOMETHING"}).Error())
}

func TestCodeOf(t *testing.T) {
	code, ok := CodeOf(fmt.Errorf("wrapped: %w", ErrAccountDisabled))
	assert.True(t, ok)
	assert.Equal(t, CodeAccountDisabled, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)

	_, ok = CodeOf(nil)
	assert.False(t, ok)
}

func TestCodesHaveMessages(t *testing.T) {
	for _, code := range Codes {
		assert.NotEmpty(t, messages[code], code)
	}
}

func TestCodeMessage(t *testing.T) {
	assert.Equal(t, "account is disabled", CodeAccountDisabled.Message())
	assert.Equal(t, "UNKNOWN", Code("UNKNOWN").Message())
}
