package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort   string `env:"PORT,default=8080"`
	DatabaseType string `env:"DATABASE_TYPE,default=sqlite"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabasePath string `env:"DB_PATH,default=./kiwilearn.db"`

	// Identity provider
	AuthDomain          string        `env:"AUTH_DOMAIN"`
	AuthIssuer          string        `env:"AUTH_ISSUER"`
	AuthAudience        string        `env:"AUTH_AUDIENCE"`
	AuthJWKSURL         string        `env:"AUTH_JWKS_URL"`
	AuthRoleClaim       string        `env:"AUTH_ROLE_CLAIM,default=https://kiwilearn.app/role"`
	JWKSCacheTTL        time.Duration `env:"JWKS_CACHE_TTL,default=1h"`
	JWKSRefreshInterval time.Duration `env:"JWKS_REFRESH_INTERVAL,default=10s"`

	// Question oracle
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	GeminiModel       string        `env:"GEMINI_MODEL,default=gemini-1.5-flash"`
	OracleMaxAttempts int           `env:"ORACLE_MAX_ATTEMPTS,default=2"`
	OracleTimeout     time.Duration `env:"ORACLE_TIMEOUT,default=20s"`

	// Email
	SESFromEmail string `env:"SES_FROM_EMAIL"`
	SESFromName  string `env:"SES_FROM_NAME,default=KiwiLearn"`
	AWSRegion    string `env:"AWS_REGION,default=ap-southeast-2"`
	AppBaseURL   string `env:"APP_BASE_URL,default=http://localhost:5173"`

	CORSAllowOrigin  string        `env:"CORS_ALLOW_ORIGIN,default=*"`
	RateLimitRPS     int           `env:"RATE_LIMIT_RPS,default=10"`
	RateLimitBurst   int           `env:"RATE_LIMIT_BURST,default=20"`
	PetDecayInterval time.Duration `env:"PET_DECAY_INTERVAL,default=1h"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// Load reads configuration from a .env file (if present) and the environment
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDerived fills values that default from other settings
func (c *Config) applyDerived() {
	if c.AuthIssuer == "" && c.AuthDomain != "" {
		c.AuthIssuer = "https://" + strings.TrimSuffix(c.AuthDomain, "/") + "/"
	}
	if c.AuthJWKSURL == "" && c.AuthIssuer != "" {
		c.AuthJWKSURL = strings.TrimSuffix(c.AuthIssuer, "/") + "/.well-known/jwks.json"
	}
	if c.OracleMaxAttempts < 1 {
		c.OracleMaxAttempts = 1
	}
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "":
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for database type %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
	if c.JWKSCacheTTL <= 0 {
		return fmt.Errorf("JWKS_CACHE_TTL must be positive")
	}
	return nil
}

// UserInfoURL returns the identity provider's userinfo endpoint
func (c *Config) UserInfoURL() string {
	if c.AuthIssuer == "" {
		return ""
	}
	return strings.TrimSuffix(c.AuthIssuer, "/") + "/userinfo"
}
