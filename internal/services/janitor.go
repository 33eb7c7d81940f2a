package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Janitor deletes finished tasks once they age past the retention window.
// It runs on a cron schedule so the task table does not grow unbounded.
type Janitor struct {
	tasks     *TaskService
	retention time.Duration
	schedule  string
	logger    *logrus.Logger
	cron      *cron.Cron
}

func NewJanitor(tasks *TaskService, retention time.Duration, schedule string, logger *logrus.Logger) *Janitor {
	if schedule == "" {
		schedule = "@hourly"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Janitor{
		tasks:     tasks,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start registers the cleanup job and begins the cron loop.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(j.schedule, j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.WithFields(logrus.Fields{
		"schedule":  j.schedule,
		"retention": j.retention,
	}).Info("Task janitor started")
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := j.tasks.PurgeOlderThan(ctx, j.retention); err != nil {
		j.logger.WithError(err).Error("Task cleanup sweep failed")
	}
}
