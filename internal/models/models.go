package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// LocalConfig represents the local gateway configuration
// This is a singleton model (only one row should exist)
type LocalConfig struct {
	BaseModel
	// Token-at-rest encryption key, auto-generated on first run (64 hex chars)
	EncryptionKey string `json:"-" gorm:"type:varchar(64);not null"`

	// Sweep configuration (for pending profile-write retries)
	SweepSchedule string     `json:"sweep_schedule"` // Cron expression, e.g. "*/15 * * * *", empty = no sweep
	LastSweepAt   *time.Time `json:"last_sweep_at"`
	NextSweepAt   *time.Time `json:"next_sweep_at"` // Calculated from cron schedule
}

// Credential stores the backend-issued session token between runs.
// The token is encrypted with the LocalConfig key before it gets here.
type Credential struct {
	BaseModel
	Token     string    `json:"-" gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ProfileWrite is a pending role-document write left over from a sign-up
// whose document step failed. The worker retries these to completion.
type ProfileWrite struct {
	BaseModel
	UID         string     `json:"uid" gorm:"not null;uniqueIndex"`
	Email       string     `json:"email" gorm:"not null"`
	Role        string     `json:"role" gorm:"not null"`
	DisplayName string     `json:"display_name"`
	TeacherID   string     `json:"teacher_id"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	LastError   string     `json:"last_error"`
	CompletedAt *time.Time `json:"completed_at"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&LocalConfig{}, &Credential{}, &ProfileWrite{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
