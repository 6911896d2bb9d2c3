package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Revocation RevocationConfig `mapstructure:"revocation"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	MaskLoginErrors bool            `mapstructure:"mask_login_errors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type AuthConfig struct {
	Issuer               string        `mapstructure:"issuer"`
	AccessTokenTTL       time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL      time.Duration `mapstructure:"refresh_token_ttl"`
	SigningKeyFile       string        `mapstructure:"signing_key_file"`
	MessageTemplate      string        `mapstructure:"message_template"`
	RotateNonceOnFailure bool          `mapstructure:"rotate_nonce_on_failure"`
	CallTimeout          time.Duration `mapstructure:"call_timeout"`
}

type IdentityConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString renders the settings as a postgres:// URL.
func (p PostgresConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	if p.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(p.SSLMode)
	}
	return u.String()
}

type SQLiteConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RevocationConfig struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type AuditConfig struct {
	Driver   string        `mapstructure:"driver"`
	Topic    string        `mapstructure:"topic"`
	RedisURL string        `mapstructure:"redis_url"`
	NATSURL  string        `mapstructure:"nats_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 9000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.mask_login_errors", false)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.rps", 10)
	v.SetDefault("server.rate_limit.burst", 20)
	v.SetDefault("auth.issuer", "keyauth")
	v.SetDefault("auth.access_token_ttl", "5m")
	v.SetDefault("auth.refresh_token_ttl", "120h")
	v.SetDefault("auth.signing_key_file", "")
	v.SetDefault("auth.message_template", "")
	v.SetDefault("auth.rotate_nonce_on_failure", false)
	v.SetDefault("auth.call_timeout", "3s")
	v.SetDefault("identity.driver", "memory")
	v.SetDefault("identity.postgres.host", "localhost")
	v.SetDefault("identity.postgres.port", 5432)
	v.SetDefault("identity.postgres.database", "keyauth")
	v.SetDefault("identity.postgres.user", "keyauth")
	v.SetDefault("identity.postgres.password", "")
	v.SetDefault("identity.postgres.sslmode", "disable")
	v.SetDefault("identity.sqlite.dsn", "keyauth.db")
	v.SetDefault("revocation.driver", "memory")
	v.SetDefault("revocation.redis.url", "redis://localhost:6379/0")
	v.SetDefault("revocation.redis.prefix", "keyauth:revoked:")
	v.SetDefault("audit.driver", "log")
	v.SetDefault("audit.topic", "keyauth.audit")
	v.SetDefault("audit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("audit.nats_url", "nats://localhost:4222")
	v.SetDefault("audit.timeout", "2s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/keyauth")
	}

	v.SetEnvPrefix("KEYAUTH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("server.rate_limit rps and burst must be positive"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.access_token_ttl must be positive"))
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.refresh_token_ttl must be positive"))
	}
	if c.Auth.CallTimeout <= 0 {
		errs = append(errs, errors.New("auth.call_timeout must be positive"))
	}

	switch c.Identity.Driver {
	case "memory", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown identity.driver %q", c.Identity.Driver))
	}
	switch c.Revocation.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown revocation.driver %q", c.Revocation.Driver))
	}
	switch c.Audit.Driver {
	case "log", "redisstream", "nats":
	default:
		errs = append(errs, fmt.Errorf("unknown audit.driver %q", c.Audit.Driver))
	}

	return errors.Join(errs...)
}
