package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/core"
)

// Transport level codes, outside the auth flow taxonomy.
const (
	CodeInvalidRequest core.Code = "INVALID_REQUEST"
	CodeRateLimited    core.Code = "RATE_LIMITED"
	CodeInternal       core.Code = "INTERNAL"
)

var transportMessages = map[core.Code]string{
	CodeInvalidRequest: "invalid request",
	CodeRateLimited:    "too many requests",
	CodeInternal:       "internal error",
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    core.Code `json:"code"`
	Message string    `json:"message"`
}

// statusFor maps a failure code to its HTTP status.
func statusFor(code core.Code) int {
	switch code {
	case core.CodeInvalidAddress, CodeInvalidRequest:
		return http.StatusBadRequest
	case core.CodeSignatureInvalid,
		core.CodeTokenMalformed,
		core.CodeTokenExpired,
		core.CodeWrongTokenKind,
		core.CodeTokenRevoked:
		return http.StatusUnauthorized
	case core.CodeAccountDisabled:
		return http.StatusForbidden
	case core.CodeUserNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case core.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(code core.Code) string {
	if msg, ok := transportMessages[code]; ok {
		return msg
	}
	return code.Message()
}

// abortWithCode writes the error body for code and stops the handler chain.
func abortWithCode(c *gin.Context, code core.Code) {
	c.AbortWithStatusJSON(statusFor(code), errorResponse{
		Error: errorDetail{Code: code, Message: messageFor(code)},
	})
}

// abortWithError maps err onto the closed code set; errors without a code are
// reported as INTERNAL. The cause stays on the context for the request logger.
func abortWithError(c *gin.Context, err error) {
	code, ok := core.CodeOf(err)
	if !ok {
		code = CodeInternal
	}
	_ = c.Error(err)
	abortWithCode(c, code)
}
