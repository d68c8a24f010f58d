package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client the services depend on.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, Password: password, DB: db})
}

// NewTask marshals payload as JSON.
func NewTask(taskType string, payload interface{}, opts ...asynq.Option) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, raw, opts...), nil
}

// UnmarshalTask decodes a task payload. A malformed payload is wrapped with asynq.SkipRetry,
// retrying cannot fix it.
func UnmarshalTask(task *asynq.Task, dest interface{}) error {
	if err := json.Unmarshal(task.Payload(), dest); err != nil {
		return fmt.Errorf("unmarshal %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// NopEnqueuer drops every task. Used when no queue is configured and in tests.
type NopEnqueuer struct{}

func (NopEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{Type: task.Type()}, nil
}
