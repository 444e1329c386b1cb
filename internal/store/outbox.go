package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/studyhall-dev/studyhall/internal/models"
)

// Outbox records role-document writes that failed during sign-up so the
// worker can retry them to completion
type Outbox struct {
	db *gorm.DB
}

// NewOutbox creates an outbox over the local database
func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

// Enqueue records a pending profile write. A second sign-up failure for the
// same uid updates the existing row instead of creating a duplicate.
func (o *Outbox) Enqueue(write *models.ProfileWrite) error {
	var existing models.ProfileWrite
	err := o.db.Where("uid = ?", write.UID).First(&existing).Error
	switch {
	case err == nil:
		write.ID = existing.ID
		write.CreatedAt = existing.CreatedAt
		return o.db.Save(write).Error
	case err == gorm.ErrRecordNotFound:
		return o.db.Create(write).Error
	default:
		return fmt.Errorf("failed to check outbox: %w", err)
	}
}

// Get loads a pending write by ID
func (o *Outbox) Get(id string) (*models.ProfileWrite, error) {
	var write models.ProfileWrite
	if err := models.FindByID(o.db, id, &write); err != nil {
		return nil, err
	}
	return &write, nil
}

// Pending lists writes that have not completed yet
func (o *Outbox) Pending() ([]models.ProfileWrite, error) {
	var writes []models.ProfileWrite
	if err := o.db.Where("completed_at IS NULL").Order("created_at ASC").Find(&writes).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending writes: %w", err)
	}
	return writes, nil
}

// MarkCompleted stamps a write as done
func (o *Outbox) MarkCompleted(id string) error {
	now := time.Now()
	return o.db.Model(&models.ProfileWrite{}).Where("id = ?", id).
		Updates(map[string]any{"completed_at": &now, "last_error": ""}).Error
}

// RecordFailure bumps the attempt counter and stores the latest error
func (o *Outbox) RecordFailure(id string, cause error) error {
	return o.db.Model(&models.ProfileWrite{}).Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause.Error(),
		}).Error
}
