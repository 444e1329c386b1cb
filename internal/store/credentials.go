package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/studyhall-dev/studyhall/internal/models"
	"github.com/studyhall-dev/studyhall/internal/secure"
)

// Credentials persists the backend session token, encrypted at rest.
// It satisfies identity.CredentialStore.
type Credentials struct {
	db  *gorm.DB
	key []byte
}

// NewCredentials creates a credential store using the given encryption key
func NewCredentials(db *gorm.DB, key []byte) *Credentials {
	return &Credentials{db: db, key: key}
}

// SaveCredential replaces the persisted token
func (c *Credentials) SaveCredential(token string) error {
	sealed, err := secure.Seal(c.key, token)
	if err != nil {
		return err
	}

	var cred models.Credential
	err = c.db.First(&cred).Error
	switch {
	case err == nil:
		return c.db.Model(&cred).Update("token", sealed).Error
	case err == gorm.ErrRecordNotFound:
		return c.db.Create(&models.Credential{Token: sealed}).Error
	default:
		return fmt.Errorf("failed to load credential: %w", err)
	}
}

// LoadCredential returns the persisted token, or "" when none is stored
func (c *Credentials) LoadCredential() (string, error) {
	var cred models.Credential
	if err := c.db.First(&cred).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to load credential: %w", err)
	}

	return secure.Open(c.key, cred.Token)
}

// ClearCredential removes any persisted token
func (c *Credentials) ClearCredential() error {
	return c.db.Where("1 = 1").Delete(&models.Credential{}).Error
}
