package models

import (
	"time"

	"gorm.io/datatypes"
)

// Task lifecycle states.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// SimulationTask tracks one background simulation request through
// pending -> running -> completed/failed.
type SimulationTask struct {
	ID           string         `gorm:"primaryKey;size:36" json:"task_id"`
	Platform     string         `gorm:"size:50;not null;index:ix_tasks_league" json:"platform"`
	LeagueID     string         `gorm:"size:100;not null;index:ix_tasks_league" json:"league_id"`
	Season       int            `gorm:"not null;index:ix_tasks_league" json:"season"`
	Sport        string         `gorm:"size:50;not null;default:basketball" json:"sport"`
	Status       string         `gorm:"size:20;not null;default:pending;index" json:"status"`
	Progress     int            `gorm:"not null;default:0" json:"progress"`
	ErrorMessage string         `gorm:"type:text" json:"error,omitempty"`
	Results      datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

func (SimulationTask) TableName() string {
	return "simulation_tasks"
}

// YahooCredential stores a user's Yahoo OAuth tokens. The adapter refreshes
// the access token in place and raises TokenRefreshed so the host persists
// the updated row.
type YahooCredential struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	AccessToken  string    `gorm:"type:text;not null" json:"-"`
	RefreshToken string    `gorm:"type:text;not null" json:"-"`
	TokenType    string    `gorm:"size:50;default:bearer" json:"token_type"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (YahooCredential) TableName() string {
	return "yahoo_credentials"
}

// IsExpired reports whether the access token has already lapsed.
func (c *YahooCredential) IsExpired() bool {
	return time.Now().UTC().After(c.ExpiresAt)
}
