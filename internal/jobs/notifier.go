package jobs

import (
	"context"
	"errors"
	"fmt"

	"user_accounts/internal/logging"
	"user_accounts/internal/model"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Notifier enqueues account events on Redis
type Notifier struct {
	client *asynq.Client
	logger zerolog.Logger
}

// NewNotifier shares rdb with asynq. The caller owns rdb and closes it.
func NewNotifier(rdb redis.UniversalClient, logger zerolog.Logger) *Notifier {
	return &Notifier{
		client: asynq.NewClientFromRedisClient(rdb),
		logger: logger,
	}
}

// UserRegistered enqueues a user:registered task. An already queued event
// for the same user is not an error.
func (n *Notifier) UserRegistered(ctx context.Context, user *model.User) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	task, err := NewUserRegisteredTask(user)
	if err != nil {
		return err
	}

	info, err := n.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logging.FromContext(ctx, &n.logger).Debug().Int64("user_id", user.ID).Msg("registered event already queued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", TypeUserRegistered, err)
	}

	logging.FromContext(ctx, &n.logger).Debug().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Int64("user_id", user.ID).
		Msg("registered event enqueued")
	return nil
}

// LogNotifier stands in for Notifier when no queue is configured.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) UserRegistered(ctx context.Context, user *model.User) error {
	if user == nil {
		return nil
	}
	logging.FromContext(ctx, &n.Logger).Info().
		Str("event", TypeUserRegistered).
		Int64("user_id", user.ID).
		Str("role", user.Role).
		Msg("user registered")
	return nil
}
