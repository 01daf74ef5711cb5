// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"user_accounts/internal/utils"
)

// Config holds runtime settings for the server
type Config struct {
	ServerPort         string        `env:"SERVER_PORT" envDefault:"8080"`
	GinMode            string        `env:"GIN_MODE" envDefault:"debug"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty          bool          `env:"LOG_PRETTY" envDefault:"false"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	DB DBConfig `envPrefix:"DB_"`

	// QueueRedisURL enables the asynq event queue when set
	QueueRedisURL     string `env:"QUEUE_REDIS_URL"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"2"`

	BcryptCost   int            `env:"BCRYPT_COST" envDefault:"12"`
	Password     PasswordConfig `envPrefix:"PASSWORD_"`
	StoreTimeout time.Duration  `env:"STORE_TIMEOUT" envDefault:"5s"`
}

// PasswordConfig maps to utils.PasswordPolicy
type PasswordConfig struct {
	MinLength int  `env:"MIN_LENGTH" envDefault:"8"`
	MixedCase bool `env:"MIXED_CASE" envDefault:"false"`
	Numbers   bool `env:"NUMBERS" envDefault:"false"`
	Symbols   bool `env:"SYMBOLS" envDefault:"false"`
}

// Policy converts the settings into a password policy
func (p PasswordConfig) Policy() utils.PasswordPolicy {
	return utils.PasswordPolicy{
		MinLength: p.MinLength,
		MixedCase: p.MixedCase,
		Numbers:   p.Numbers,
		Symbols:   p.Symbols,
	}
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	// A missing .env is fine, real environment variables still apply
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that the env tags cannot express
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort == "" {
		errs = append(errs, errors.New("SERVER_PORT must not be empty"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Password.MinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be positive"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	if c.DB.ConnectRetries < 1 {
		errs = append(errs, errors.New("DB_CONNECT_RETRIES must be positive"))
	}
	return errors.Join(errs...)
}
