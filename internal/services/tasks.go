package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jstittsworth/playoff-odds/internal/models"
	"github.com/jstittsworth/playoff-odds/pkg/database"
	"github.com/jstittsworth/playoff-odds/pkg/utils"
)

// TaskService persists simulation tasks and drives their lifecycle:
// pending -> running -> completed/failed. Transitions are one way.
type TaskService struct {
	db     *database.DB
	logger *logrus.Logger
}

func NewTaskService(db *database.DB, logger *logrus.Logger) *TaskService {
	return &TaskService{db: db, logger: logger}
}

// Create registers a new pending task and returns it.
func (s *TaskService) Create(ctx context.Context, platform, leagueID string, season int, sport string) (*models.SimulationTask, error) {
	task := &models.SimulationTask{
		ID:        uuid.New().String(),
		Platform:  platform,
		LeagueID:  leagueID,
		Season:    season,
		Sport:     sport,
		Status:    models.TaskStatusPending,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"platform": platform,
		"league":   leagueID,
	}).Info("Created simulation task")
	return task, nil
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, taskID string) (*models.SimulationTask, error) {
	var task models.SimulationTask
	err := s.db.WithContext(ctx).First(&task, "id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return &task, nil
}

// MarkRunning moves a pending task to running.
func (s *TaskService) MarkRunning(ctx context.Context, taskID string) error {
	return s.transition(ctx, taskID, models.TaskStatusPending, map[string]interface{}{
		"status": models.TaskStatusRunning,
	})
}

// UpdateProgress records progress for a running task. Progress only moves
// forward; stale updates after completion are ignored.
func (s *TaskService) UpdateProgress(ctx context.Context, taskID string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	err := s.db.WithContext(ctx).
		Model(&models.SimulationTask{}).
		Where("id = ? AND status = ? AND progress < ?", taskID, models.TaskStatusRunning, progress).
		Update("progress", progress).Error
	if err != nil {
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

// Complete stores the results payload and finishes the task.
func (s *TaskService) Complete(ctx context.Context, taskID string, results *models.SimulationResults) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	now := time.Now().UTC()
	return s.transition(ctx, taskID, models.TaskStatusRunning, map[string]interface{}{
		"status":       models.TaskStatusCompleted,
		"progress":     100,
		"results":      datatypes.JSON(payload),
		"completed_at": &now,
	})
}

// Fail finishes the task with an error message.
func (s *TaskService) Fail(ctx context.Context, taskID string, message string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).
		Model(&models.SimulationTask{}).
		Where("id = ? AND status IN ?", taskID, []string{models.TaskStatusPending, models.TaskStatusRunning}).
		Updates(map[string]interface{}{
			"status":        models.TaskStatusFailed,
			"error_message": message,
			"completed_at":  &now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	return nil
}

func (s *TaskService) transition(ctx context.Context, taskID, fromStatus string, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).
		Model(&models.SimulationTask{}).
		Where("id = ? AND status = ?", taskID, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: task %s is not %s", utils.ErrConflict, taskID, fromStatus)
	}
	return nil
}

// Results decodes the stored payload of a completed task.
func (s *TaskService) Results(ctx context.Context, taskID string) (*models.SimulationResults, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusCompleted {
		return nil, fmt.Errorf("%w: task %s is %s", utils.ErrConflict, taskID, task.Status)
	}
	var results models.SimulationResults
	if err := json.Unmarshal(task.Results, &results); err != nil {
		return nil, fmt.Errorf("failed to decode task results: %w", err)
	}
	return &results, nil
}

// PurgeOlderThan deletes finished tasks past the retention window and
// returns the count removed. The janitor calls this on a schedule.
func (s *TaskService) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?",
			[]string{models.TaskStatusCompleted, models.TaskStatusFailed}, cutoff).
		Delete(&models.SimulationTask{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge tasks: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.WithField("purged", result.RowsAffected).Info("Purged expired simulation tasks")
	}
	return result.RowsAffected, nil
}
