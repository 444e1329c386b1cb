package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"gorm.io/gorm"

	"github.com/studyhall-dev/studyhall/internal/models"
	"github.com/studyhall-dev/studyhall/internal/secure"
)

// DefaultSweepSchedule retries pending profile writes every 15 minutes
const DefaultSweepSchedule = "*/15 * * * *"

// EnsureLocalConfig loads the singleton local config, creating it with an
// auto-generated encryption key on first run
func EnsureLocalConfig(db *gorm.DB) (*models.LocalConfig, error) {
	var cfg models.LocalConfig
	err := db.First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to load local config: %w", err)
	}

	keyBytes := make([]byte, secure.KeySize)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}

	cfg = models.LocalConfig{
		EncryptionKey: hex.EncodeToString(keyBytes),
		SweepSchedule: DefaultSweepSchedule,
	}
	if err := db.Create(&cfg).Error; err != nil {
		return nil, fmt.Errorf("failed to create local config: %w", err)
	}

	return &cfg, nil
}

// EncryptionKey decodes the hex key stored in the local config
func EncryptionKey(cfg *models.LocalConfig) ([]byte, error) {
	key, err := hex.DecodeString(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != secure.KeySize {
		return nil, fmt.Errorf("encryption key has wrong length: %d", len(key))
	}
	return key, nil
}
