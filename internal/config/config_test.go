package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 120*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 3*time.Second, cfg.Auth.CallTimeout)
	assert.False(t, cfg.Auth.RotateNonceOnFailure)
	assert.Equal(t, "memory", cfg.Identity.Driver)
	assert.Equal(t, "memory", cfg.Revocation.Driver)
	assert.Equal(t, "keyauth:revoked:", cfg.Revocation.Redis.Prefix)
	assert.Equal(t, "log", cfg.Audit.Driver)
	assert.Equal(t, "keyauth.audit", cfg.Audit.Topic)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8088
  mask_login_errors: true
auth:
  access_token_ttl: 1m
identity:
  driver: sqlite
  sqlite:
    dsn: /tmp/ids.db
`), 0o600))

	t.Setenv("KEYAUTH_REVOCATION_DRIVER", "redis")
	t.Setenv("KEYAUTH_AUTH_ROTATE_NONCE_ON_FAILURE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.True(t, cfg.Server.MaskLoginErrors)
	assert.Equal(t, time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, "sqlite", cfg.Identity.Driver)
	assert.Equal(t, "/tmp/ids.db", cfg.Identity.SQLite.DSN)
	assert.Equal(t, "redis", cfg.Revocation.Driver)
	assert.True(t, cfg.Auth.RotateNonceOnFailure)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:     ServerConfig{Port: 9000},
			Auth:       AuthConfig{AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour, CallTimeout: time.Second},
			Identity:   IdentityConfig{Driver: "memory"},
			Revocation: RevocationConfig{Driver: "memory"},
			Audit:      AuditConfig{Driver: "log"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero access ttl", func(c *Config) { c.Auth.AccessTokenTTL = 0 }, "access_token_ttl"},
		{"negative refresh ttl", func(c *Config) { c.Auth.RefreshTokenTTL = -time.Second }, "refresh_token_ttl"},
		{"zero call timeout", func(c *Config) { c.Auth.CallTimeout = 0 }, "call_timeout"},
		{"unknown identity driver", func(c *Config) { c.Identity.Driver = "mysql" }, "identity.driver"},
		{"unknown revocation driver", func(c *Config) { c.Revocation.Driver = "etcd" }, "revocation.driver"},
		{"unknown audit driver", func(c *Config) { c.Audit.Driver = "kafka" }, "audit.driver"},
		{"rate limit without rps", func(c *Config) { c.Server.RateLimit = RateLimitConfig{Enabled: true, Burst: 1} }, "rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPostgresConnString(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, Database: "keyauth", User: "ka", Password: "p@ss", SSLMode: "disable"}
	assert.Equal(t, "postgres://ka:p%40ss@db:5432/keyauth?sslmode=disable", p.ConnString())
}
