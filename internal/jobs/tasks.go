// Package jobs carries account events to asynchronous consumers over asynq.
package jobs

import (
	"encoding/json"
	"fmt"
	"strconv"

	"user_accounts/internal/model"

	"github.com/hibiken/asynq"
)

const (
	TypeUserRegistered = "user:registered"
	QueueEvents        = "events"

	registeredMaxRetry = 3
)

// RegisteredPayload is the body of a user:registered task. It never carries
// credentials.
type RegisteredPayload struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Phone  string `json:"no_hp"`
}

// NewUserRegisteredTask builds the task announcing a new account. The task ID
// is derived from the user ID so a repeated enqueue is rejected.
func NewUserRegisteredTask(user *model.User) (*asynq.Task, error) {
	body, err := json.Marshal(RegisteredPayload{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
		Phone:  user.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode registered payload: %w", err)
	}
	return asynq.NewTask(
		TypeUserRegistered,
		body,
		asynq.Queue(QueueEvents),
		asynq.MaxRetry(registeredMaxRetry),
		asynq.TaskID(registeredTaskID(user.ID)),
	), nil
}

func registeredTaskID(userID int64) string {
	return "user-registered:" + strconv.FormatInt(userID, 10)
}
