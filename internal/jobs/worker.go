package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Worker consumes account events from Redis
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger zerolog.Logger
}

// NewWorker builds an asynq server on rdb. The caller owns rdb and closes it.
func NewWorker(rdb redis.UniversalClient, concurrency int, logger zerolog.Logger) *Worker {
	w := &Worker{
		mux:    asynq.NewServeMux(),
		logger: logger.With().Str("component", "worker").Logger(),
	}
	w.server = asynq.NewServerFromRedisClient(rdb, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueEvents: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(w.handleError),
		Logger:       asynqLogger{logger: w.logger},
		LogLevel:     asynq.WarnLevel,
	})
	w.mux.HandleFunc(TypeUserRegistered, w.handleUserRegistered)
	return w
}

// Start runs the worker in the background
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	w.logger.Info().Str("queue", QueueEvents).Msg("worker started")
	return nil
}

// Shutdown waits for in-flight tasks and stops the worker
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info().Msg("worker stopped")
}

func (w *Worker) handleUserRegistered(ctx context.Context, task *asynq.Task) error {
	var payload RegisteredPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", TypeUserRegistered, err, asynq.SkipRetry)
	}
	if payload.UserID <= 0 {
		return fmt.Errorf("missing user_id in %s payload: %w", TypeUserRegistered, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	w.logger.Info().
		Str("task_id", taskID).
		Int64("user_id", payload.UserID).
		Str("name", payload.Name).
		Str("role", payload.Role).
		Msg("user registered")
	return nil
}

func (w *Worker) handleError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	w.logger.Error().
		Err(err).
		Str("type", task.Type()).
		Int("retried", retried).
		Int("max_retry", maxRetry).
		Msg("task failed")
}
