// Package config loads service settings from defaults, an optional .env
// file and MEMBERSHIP_* environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goliatone/go-membership"
	"github.com/joho/godotenv"
)

const envPrefix = "MEMBERSHIP_"

// MinSigningKeyLength is enforced outside development
const MinSigningKeyLength = 32

const (
	SessionBackendSQL   = "sql"
	SessionBackendRedis = "redis"
)

type Config struct {
	Addr                 string
	Debug                bool
	Dev                  bool
	LogLevel             string
	DatabaseDriver       string
	DatabaseDSN          string
	SigningKey           string
	Issuer               string
	VerificationTokenTTL time.Duration
	VerificationURL      string
	PasswordHashCost     int
	MailFrom             string
	SMTPAddr             string
	UseHashid            bool
	DispatchTimeout      time.Duration
	DispatchRetries      int
	SessionBackend       string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	ShutdownTimeout      time.Duration
}

var _ membership.Config = (*Config)(nil)

// Defaults returns the development configuration
func Defaults() *Config {
	return &Config{
		Addr:                 ":8080",
		LogLevel:             "info",
		DatabaseDriver:       "sqlite",
		DatabaseDSN:          "file:membership.db?cache=shared",
		Issuer:               "membership",
		VerificationTokenTTL: membership.DefaultVerificationTokenTTL,
		VerificationURL:      "http://localhost:8080/users/verify",
		PasswordHashCost:     12,
		MailFrom:             "noreply@membership.local",
		DispatchTimeout:      membership.DefaultDispatchTimeout,
		DispatchRetries:      membership.DefaultDispatchRetries,
		SessionBackend:       SessionBackendSQL,
		RedisAddr:            "localhost:6379",
		ShutdownTimeout:      15 * time.Second,
	}
}

// Load reads the .env files (if any), then the environment on top of the
// defaults, and validates the result.
func Load(files ...string) (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load(files...)

	cfg := Defaults()
	cfg.Addr = GetString("ADDR", cfg.Addr)
	cfg.Debug = GetBool("DEBUG", cfg.Debug)
	cfg.Dev = GetBool("DEV", cfg.Dev)
	cfg.LogLevel = GetString("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseDriver = GetString("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseDSN = GetString("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.SigningKey = GetString("SIGNING_KEY", cfg.SigningKey)
	cfg.Issuer = GetString("ISSUER", cfg.Issuer)
	cfg.VerificationTokenTTL = GetDuration("VERIFICATION_TOKEN_TTL", cfg.VerificationTokenTTL)
	cfg.VerificationURL = GetString("VERIFICATION_URL", cfg.VerificationURL)
	cfg.PasswordHashCost = GetInt("PASSWORD_HASH_COST", cfg.PasswordHashCost)
	cfg.MailFrom = GetString("MAIL_FROM", cfg.MailFrom)
	cfg.SMTPAddr = GetString("SMTP_ADDR", cfg.SMTPAddr)
	cfg.UseHashid = GetBool("USE_HASHID", cfg.UseHashid)
	cfg.DispatchTimeout = GetDuration("DISPATCH_TIMEOUT", cfg.DispatchTimeout)
	cfg.DispatchRetries = GetInt("DISPATCH_RETRIES", cfg.DispatchRetries)
	cfg.SessionBackend = GetString("SESSION_BACKEND", cfg.SessionBackend)
	cfg.RedisAddr = GetString("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = GetString("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = GetInt("REDIS_DB", cfg.RedisDB)
	cfg.ShutdownTimeout = GetDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	fields := map[string]string{}

	if c.SigningKey == "" {
		fields["signing_key"] = "is required"
	} else if !c.Dev && len(c.SigningKey) < MinSigningKeyLength {
		fields["signing_key"] = fmt.Sprintf("must be at least %d bytes", MinSigningKeyLength)
	}

	if c.VerificationTokenTTL <= 0 {
		fields["verification_token_ttl"] = "must be positive"
	}

	switch c.DatabaseDriver {
	case "sqlite", "sqlite3", "postgres", "pgx":
	default:
		fields["database_driver"] = "must be sqlite or postgres"
	}

	if c.DatabaseDSN == "" {
		fields["database_dsn"] = "is required"
	}

	switch c.SessionBackend {
	case SessionBackendSQL:
	case SessionBackendRedis:
		if c.RedisAddr == "" {
			fields["redis_addr"] = "is required for the redis session backend"
		}
	default:
		fields["session_backend"] = "must be sql or redis"
	}

	if len(fields) == 0 {
		return nil
	}

	return membership.NewValidationError("invalid configuration", membership.TextCodeInvalidInput, fields)
}

func (c *Config) GetSigningKey() string                  { return c.SigningKey }
func (c *Config) GetIssuer() string                      { return c.Issuer }
func (c *Config) GetVerificationTokenTTL() time.Duration { return c.VerificationTokenTTL }
func (c *Config) GetVerificationURL() string             { return c.VerificationURL }
func (c *Config) GetPasswordHashCost() int               { return c.PasswordHashCost }
func (c *Config) GetMailFrom() string                    { return c.MailFrom }
func (c *Config) GetDatabaseDriver() string              { return c.DatabaseDriver }
func (c *Config) GetDatabaseDSN() string                 { return c.DatabaseDSN }

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid value for %s%s: %v", envPrefix, key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid value for %s%s: %v", envPrefix, key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetDuration retrieves an environment variable as time.Duration or returns fallback.
func GetDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid value for %s%s: %v", envPrefix, key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}
