package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSessionsPrune is the task type for pruning expired login
	// session records.
	TaskTypeSessionsPrune = "auth:sessions:prune"
)

// SessionsPrunePayload configures a prune run. GraceFor keeps expired rows
// around for a while so recent logins stay inspectable.
type SessionsPrunePayload struct {
	GraceFor time.Duration `json:"grace_for"`
}

// NewSessionsPruneTask constructs an Asynq task.
func NewSessionsPruneTask(payload SessionsPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSessionsPrune, data), nil
}

// SessionPruner deletes login session records that expired before a cutoff.
type SessionPruner interface {
	DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error)
}

// SessionsPruneJob processes TaskTypeSessionsPrune tasks.
type SessionsPruneJob struct {
	store  SessionPruner
	logger *slog.Logger
}

// NewSessionsPruneJob constructs the job.
func NewSessionsPruneJob(store SessionPruner, logger *slog.Logger) *SessionsPruneJob {
	return &SessionsPruneJob{store: store, logger: logger}
}

// Handle prunes expired login session records.
func (j *SessionsPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionsPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	cutoff := time.Now().Add(-payload.GraceFor)
	pruned, err := j.store.DeleteExpiredLoginSessions(ctx, cutoff)
	if err != nil {
		return err
	}
	if j.logger != nil {
		j.logger.Info("pruned login sessions", slog.Int64("count", pruned))
	}
	return nil
}
