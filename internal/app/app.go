package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/adapters/signature"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/internal/config"
	"github.com/layer-3/keyauth/internal/metrics"
	"github.com/layer-3/keyauth/service"
	transport "github.com/layer-3/keyauth/transport/http"
)

// App is the fully wired service.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Auth    *service.AuthService
	Router  *gin.Engine

	closers []func() error
}

// New builds every component selected by cfg. On error, anything already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	template, err := core.NewChallengeTemplate(challengeTemplate(cfg.Auth.MessageTemplate))
	if err != nil {
		return nil, fmt.Errorf("auth.message_template: %w", err)
	}

	key, err := signingKey(cfg.Auth.SigningKeyFile, logger)
	if err != nil {
		return nil, err
	}

	identities, closeIdentities, err := NewIdentityStore(ctx, cfg.Identity)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeIdentities)

	revocations, closeRevocations, err := NewRevocationStore(ctx, cfg.Revocation)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRevocations)

	audit, closeAudit, err := NewAuditRecorder(ctx, cfg.Audit, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeAudit)

	tokens := service.NewTokenService(
		tokenizer.NewJWTTokenizer(key, tokenizer.WithIssuer(cfg.Auth.Issuer)),
		revocations,
		service.WithTokenTTLs(cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL),
		service.WithTokenIssuer(cfg.Auth.Issuer),
		service.WithRevocationTimeout(cfg.Auth.CallTimeout),
	)

	a.Auth = service.NewAuthService(identities, signature.NewEthereumVerifier(), tokens, audit,
		service.WithChallengeTemplate(template),
		service.WithRotateNonceOnFailure(cfg.Auth.RotateNonceOnFailure),
		service.WithCallTimeout(cfg.Auth.CallTimeout),
		service.WithAuditTimeout(cfg.Audit.Timeout),
		service.WithMetrics(a.Metrics),
		service.WithLogger(logger),
	)

	opts := transport.RouterOptions{
		Logger:          logger,
		Metrics:         a.Metrics,
		MaskLoginErrors: cfg.Server.MaskLoginErrors,
	}
	if cfg.Server.RateLimit.Enabled {
		opts.RateLimiter = transport.NewIPRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	}
	a.Router = transport.SetupRouter(a.Auth, opts)

	return a, nil
}

// Close waits for pending audit events and releases every backend, most
// recently opened first.
func (a *App) Close() error {
	if a.Auth != nil {
		a.Auth.WaitForAudit()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func challengeTemplate(tpl string) string {
	if tpl == "" {
		return core.DefaultChallengeTemplate
	}
	return tpl
}
