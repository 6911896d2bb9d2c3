package app

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"

	"github.com/layer-3/keyauth/adapters/events"
	"github.com/layer-3/keyauth/adapters/identity"
	"github.com/layer-3/keyauth/adapters/store"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/layer-3/keyauth/internal/config"
	"github.com/layer-3/keyauth/ports"
	"github.com/redis/go-redis/v9"
)

func noop() error { return nil }

// NewIdentityStore opens the identity backend named by cfg.Driver.
func NewIdentityStore(ctx context.Context, cfg config.IdentityConfig) (ports.IdentityStore, func() error, error) {
	switch cfg.Driver {
	case "memory":
		return identity.NewMemoryStore(), noop, nil
	case "postgres":
		s, err := identity.NewPostgresStore(ctx, cfg.Postgres.ConnString())
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { s.Close(); return nil }, nil
	case "sqlite":
		s, err := identity.OpenSQLite(cfg.SQLite.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported identity driver: %s", cfg.Driver)
	}
}

// NewRevocationStore opens the revocation backend named by cfg.Driver.
func NewRevocationStore(ctx context.Context, cfg config.RevocationConfig) (ports.RevocationStore, func() error, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), noop, nil
	case "redis":
		client, err := newRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStore(client, cfg.Redis.Prefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported revocation driver: %s", cfg.Driver)
	}
}

// NewAuditRecorder builds the audit transport named by cfg.Driver.
func NewAuditRecorder(ctx context.Context, cfg config.AuditConfig, logger *slog.Logger) (ports.AuditRecorder, func() error, error) {
	switch cfg.Driver {
	case "log":
		return events.NewLogRecorder(logger), noop, nil
	case "redisstream":
		client, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		publisher, err := events.NewRedisStreamPublisher(client, logger)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		recorder := events.NewWatermillRecorder(publisher, cfg.Topic)
		return recorder, func() error {
			err := recorder.Close()
			// The publisher may already have closed the client.
			if cerr := client.Close(); cerr != nil && !errors.Is(cerr, redis.ErrClosed) {
				err = errors.Join(err, cerr)
			}
			return err
		}, nil
	case "nats":
		conn, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, nil, err
		}
		return events.NewNATSRecorder(conn, cfg.Topic), func() error {
			return conn.Drain()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported audit driver: %s", cfg.Driver)
	}
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// signingKey loads the token signing key, or generates an ephemeral one when
// no file is configured.
func signingKey(path string, logger *slog.Logger) (*ecdsa.PrivateKey, error) {
	if path != "" {
		key, err := tokenizer.LoadKey(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}
		return key, nil
	}

	logger.Warn("auth.signing_key_file not set, using an ephemeral key; tokens will not survive a restart")
	return tokenizer.GenerateKey()
}
