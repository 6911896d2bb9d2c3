package core

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable failure reason.
type Code string

const (
	CodeInvalidAddress     Code = "INVALID_ADDRESS"
	CodeUserNotFound       Code = "USER_NOT_FOUND"
	CodeAccountDisabled    Code = "ACCOUNT_DISABLED"
	CodeSignatureInvalid   Code = "SIGNATURE_INVALID"
	CodeTokenMalformed     Code = "TOKEN_MALFORMED"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeWrongTokenKind     Code = "WRONG_TOKEN_KIND"
	CodeTokenRevoked       Code = "TOKEN_REVOKED"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
)

// Codes lists every failure code in a stable order.
var Codes = []Code{
	CodeInvalidAddress,
	CodeUserNotFound,
	CodeAccountDisabled,
	CodeSignatureInvalid,
	CodeTokenMalformed,
	CodeTokenExpired,
	CodeWrongTokenKind,
	CodeTokenRevoked,
	CodeServiceUnavailable,
}

var messages = map[Code]string{
	CodeInvalidAddress:     "invalid ethereum address",
	CodeUserNotFound:       "user not found",
	CodeAccountDisabled:    "account is disabled",
	CodeSignatureInvalid:   "invalid signature",
	CodeTokenMalformed:     "malformed token",
	CodeTokenExpired:       "token has expired",
	CodeWrongTokenKind:     "wrong token kind",
	CodeTokenRevoked:       "token has been revoked",
	CodeServiceUnavailable: "service unavailable",
}

// Message is the client-safe description of c.
func (c Code) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return string(c)
}

// Error is an authentication failure tagged with a Code. Two errors match
// under errors.Is when their codes are equal, so callers compare against the
// sentinels below regardless of the wrapped cause.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	msg := e.Code.Message()
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidAddress     = &Error{Code: CodeInvalidAddress}
	ErrUserNotFound       = &Error{Code: CodeUserNotFound}
	ErrAccountDisabled    = &Error{Code: CodeAccountDisabled}
	ErrSignatureInvalid   = &Error{Code: CodeSignatureInvalid}
	ErrTokenMalformed     = &Error{Code: CodeTokenMalformed}
	ErrTokenExpired       = &Error{Code: CodeTokenExpired}
	ErrWrongTokenKind     = &Error{Code: CodeWrongTokenKind}
	ErrTokenRevoked       = &Error{Code: CodeTokenRevoked}
	ErrServiceUnavailable = &Error{Code: CodeServiceUnavailable}
)

// Wrap tags err with code. A nil err yields the bare code error.
func Wrap(code Code, err error) error {
	return &Error{Code: code, Err: err}
}

// CodeOf returns the code carried anywhere in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
