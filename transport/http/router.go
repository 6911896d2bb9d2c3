package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/internal/metrics"
	"github.com/layer-3/keyauth/service"
)

// RouterOptions holds the optional collaborators of the router.
type RouterOptions struct {
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	RateLimiter     *IPRateLimiter
	MaskLoginErrors bool
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(opts.Logger))

	handlers := NewAuthHandlers(authService, opts.MaskLoginErrors)

	router.GET("/healthz", handlers.Health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// Auth routes
	auth := router.Group("/auth")
	if opts.RateLimiter != nil {
		auth.Use(RateLimitMiddleware(opts.RateLimiter, opts.Metrics))
	}
	{
		auth.POST("/nonce", handlers.Nonce)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
