package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	before time.Time
	pruned int64
	err    error
}

func (f *fakePruner) DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.pruned, f.err
}

func TestSessionsPruneJob(t *testing.T) {
	pruner := &fakePruner{pruned: 3}
	job := NewSessionsPruneJob(pruner, nil)

	task, err := NewSessionsPruneTask(SessionsPrunePayload{GraceFor: 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSessionsPrune, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))

	// Cutoff sits roughly one grace period in the past.
	wantCutoff := time.Now().Add(-24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, pruner.before, time.Minute)
}

func TestSessionsPruneJobBadPayload(t *testing.T) {
	job := NewSessionsPruneJob(&fakePruner{}, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSessionsPrune, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSessionsPruneJobStoreFailure(t *testing.T) {
	storeErr := errors.New("db down")
	job := NewSessionsPruneJob(&fakePruner{err: storeErr}, nil)

	task, err := NewSessionsPruneTask(SessionsPrunePayload{})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, storeErr)
}
