package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ConnectRedis opens and pings the queue connection described by url
// (redis://[:password@]host:port/db).
func ConnectRedis(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("connected to redis")
	return client, nil
}
