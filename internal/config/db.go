package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"user_accounts/internal/migrations"
)

// DBConfig holds database connection parameters
type DBConfig struct {
	Host           string        `env:"HOST,required"`
	Port           string        `env:"PORT" envDefault:"5432"`
	User           string        `env:"USER,required"`
	Password       string        `env:"PASSWORD"`
	Name           string        `env:"NAME,required"`
	SSLMode        string        `env:"SSLMODE" envDefault:"disable"`
	ConnectRetries int           `env:"CONNECT_RETRIES" envDefault:"5"`
	RetryInterval  time.Duration `env:"RETRY_INTERVAL" envDefault:"5s"`
}

// DSN builds a libpq style connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// ConnectDB establishes a connection to the PostgreSQL database
func ConnectDB(ctx context.Context, cfg DBConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	// Retry connecting to the database a few times
	for i := 0; i < cfg.ConnectRetries; i++ {
		pool, err = pgxpool.New(ctx, cfg.DSN())
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				logger.Info().Str("host", cfg.Host).Str("db", cfg.Name).Msg("connected to PostgreSQL")
				return pool, nil
			}
			pool.Close()
		}
		logger.Warn().Err(err).
			Int("attempt", i+1).
			Int("max_attempts", cfg.ConnectRetries).
			Dur("retry_in", cfg.RetryInterval).
			Msg("failed to connect to database")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", cfg.ConnectRetries, err)
}

// Migrate applies the embedded goose migrations
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("unable to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("unable to read migration version: %w", err)
	}
	logger.Info().Int64("version", version).Msg("migrations applied")
	return nil
}

// gooseLogger routes goose output through zerolog
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info().Msgf(strings.TrimSpace(format), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Fatal().Msgf(strings.TrimSpace(format), v...)
}
