// Package config loads app configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty selects in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSigningKey signs access tokens (HS256). Required outside development.
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`
	// JWTIssuer is the iss claim on access tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim on access tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// AccessTokenTTL is the access token lifetime.
	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime.
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	// BadgeTTL is the default badge lifetime; zero issues badges without expiry.
	BadgeTTL time.Duration `mapstructure:"BADGE_TTL"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`

	Redis RedisConfig `mapstructure:",squash"`
	Kafka KafkaConfig `mapstructure:",squash"`
}

// RedisConfig configures the confidence cache and refresh token store.
// An empty URL disables Redis and falls back to in-memory implementations.
type RedisConfig struct {
	URL          string        `mapstructure:"REDIS_URL"`
	PoolSize     int           `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `mapstructure:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"REDIS_WRITE_TIMEOUT"`
}

// KafkaConfig configures the audit event publisher. Empty brokers keep audit
// events on the in-memory sink.
type KafkaConfig struct {
	Brokers string `mapstructure:"KAFKA_BROKERS"`
	Topic   string `mapstructure:"AUDIT_KAFKA_TOPIC"`
}

// BrokerList splits the comma-separated broker string.
func (k KafkaConfig) BrokerList() []string {
	if k.Brokers == "" {
		return nil
	}
	parts := strings.Split(k.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Missing .env is ignored (e.g. in CI); env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SIGNING_KEY", "")
	v.SetDefault("JWT_ISSUER", "waypost")
	v.SetDefault("JWT_AUDIENCE", "waypost-api")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h")
	v.SetDefault("BADGE_TTL", "0")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "waypost-audit")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.HTTPAddr, ":") && !strings.Contains(c.HTTPAddr, ":") {
		return errors.New("HTTP_ADDR must include a port")
	}
	if c.Env == "production" && c.JWTSigningKey == "" {
		return errors.New("JWT_SIGNING_KEY is required in production")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_TTL must be positive")
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return errors.New("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	}
	return nil
}

// SigningKey returns the configured key, substituting a development key when
// none is set outside production. validate rejects the empty production case.
func (c *Config) SigningKey() string {
	if c.JWTSigningKey != "" {
		return c.JWTSigningKey
	}
	return "dev-secret-key-change-in-production"
}
