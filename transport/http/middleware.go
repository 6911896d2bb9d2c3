package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/internal/logging"
	"github.com/layer-3/keyauth/internal/metrics"
	"github.com/layer-3/keyauth/service"
)

const claimsKey = "keyauth.claims"

// AuthMiddleware creates middleware that validates access tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithCode(c, core.CodeTokenMalformed)
			return
		}

		claims, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(auth[7:])
	return token, token != ""
}

func claimsFrom(c *gin.Context) (*core.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*core.Claims)
	return claims, ok
}

// RateLimitMiddleware rejects clients exceeding their per-IP budget.
func RateLimitMiddleware(limiter *IPRateLimiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			if m != nil {
				m.RateLimitHits.Inc()
			}
			abortWithCode(c, CodeRateLimited)
			return
		}
		c.Next()
	}
}

// RequestLogger logs every request once it completes.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []slog.Attr{
			logging.Method(c.Request.Method),
			logging.Path(c.FullPath()),
			logging.Status(status),
			logging.IP(c.ClientIP()),
			logging.Duration(time.Since(start)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String(logging.FieldError, c.Errors.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}

func requestMeta(c *gin.Context) core.RequestMeta {
	return core.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
