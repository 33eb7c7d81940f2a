package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/playoff-odds/internal/models"
	"github.com/jstittsworth/playoff-odds/pkg/database"
	"github.com/jstittsworth/playoff-odds/pkg/utils"
)

func newTestTaskService(t *testing.T) *TaskService {
	t.Helper()
	db, err := database.NewConnection("sqlite://"+filepath.Join(t.TempDir(), "tasks.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.AutoMigrate(&models.SimulationTask{}))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewTaskService(db, logger)
}

func TestTaskService_CreateStartsPending(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "espn", "12345", 2026, "basketball")
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, 0, task.Progress)

	loaded, err := svc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "espn", loaded.Platform)
	assert.Equal(t, "12345", loaded.LeagueID)
}

func TestTaskService_GetUnknownTask(t *testing.T) {
	svc := newTestTaskService(t)
	_, err := svc.Get(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestTaskService_Lifecycle(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "sleeper", "99", 2026, "football")
	require.NoError(t, err)

	require.NoError(t, svc.MarkRunning(ctx, task.ID))
	require.NoError(t, svc.UpdateProgress(ctx, task.ID, 40))

	results := &models.SimulationResults{
		LeagueName:  "Test League",
		Platform:    "sleeper",
		LeagueID:    "99",
		Season:      2026,
		Simulations: 10000,
	}
	require.NoError(t, svc.Complete(ctx, task.ID, results))

	loaded, err := svc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, loaded.Status)
	assert.Equal(t, 100, loaded.Progress)
	require.NotNil(t, loaded.CompletedAt)

	decoded, err := svc.Results(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test League", decoded.LeagueName)
	assert.Equal(t, 10000, decoded.Simulations)
}

func TestTaskService_TransitionsAreOneWay(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "espn", "1", 2026, "basketball")
	require.NoError(t, err)

	// Completing a pending task skips the running state and is rejected.
	err = svc.Complete(ctx, task.ID, &models.SimulationResults{})
	assert.ErrorIs(t, err, utils.ErrConflict)

	require.NoError(t, svc.MarkRunning(ctx, task.ID))
	// Running twice is also a conflict.
	assert.ErrorIs(t, svc.MarkRunning(ctx, task.ID), utils.ErrConflict)

	require.NoError(t, svc.Fail(ctx, task.ID, "upstream timeout"))
	loaded, err := svc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, loaded.Status)
	assert.Equal(t, "upstream timeout", loaded.ErrorMessage)

	// A failed task cannot be completed afterwards.
	err = svc.Complete(ctx, task.ID, &models.SimulationResults{})
	assert.ErrorIs(t, err, utils.ErrConflict)
}

func TestTaskService_ProgressNeverMovesBackward(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "espn", "1", 2026, "basketball")
	require.NoError(t, err)
	require.NoError(t, svc.MarkRunning(ctx, task.ID))

	require.NoError(t, svc.UpdateProgress(ctx, task.ID, 60))
	require.NoError(t, svc.UpdateProgress(ctx, task.ID, 30)) // ignored

	loaded, err := svc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, loaded.Progress)
}

func TestTaskService_ResultsRequireCompletion(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "espn", "1", 2026, "basketball")
	require.NoError(t, err)

	_, err = svc.Results(ctx, task.ID)
	assert.ErrorIs(t, err, utils.ErrConflict)
}

func TestTaskService_PurgeOlderThan(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()

	old, err := svc.Create(ctx, "espn", "1", 2026, "basketball")
	require.NoError(t, err)
	require.NoError(t, svc.MarkRunning(ctx, old.ID))
	require.NoError(t, svc.Fail(ctx, old.ID, "x"))

	// Backdate the finished task past the retention window.
	require.NoError(t, svc.db.Model(&models.SimulationTask{}).
		Where("id = ?", old.ID).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)

	fresh, err := svc.Create(ctx, "espn", "2", 2026, "basketball")
	require.NoError(t, err)

	purged, err := svc.PurgeOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = svc.Get(ctx, old.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	_, err = svc.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
