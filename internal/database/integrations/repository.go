// Package integrations provides database operations for tenant provider
// integrations. The ingestion pipeline reads them and writes back status
// and last-sync timestamps; creation and deletion belong to the tenant
// configuration flow.
package integrations

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/adlytics/adlytics/internal/crypto"
	"github.com/adlytics/adlytics/internal/entities"
)

// Repository handles integration database operations. When an encryptor is
// configured, credential blobs are encrypted before hitting disk and
// decrypted on the way out; callers always see plaintext JSON.
type Repository struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

// NewRepository creates an integration repository. encryptor may be nil to
// store credentials in the clear (local development).
func NewRepository(db *gorm.DB, encryptor *crypto.Encryptor) *Repository {
	return &Repository{db: db, encryptor: encryptor}
}

// Create stores a new integration, encrypting its credentials if a key is
// configured.
func (r *Repository) Create(integration *entities.Integration) error {
	if err := r.sealCredentials(integration); err != nil {
		return err
	}
	if err := r.db.Create(integration).Error; err != nil {
		return err
	}
	return r.openCredentials(integration)
}

// GetByID fetches one integration with decrypted credentials.
func (r *Repository) GetByID(id uint) (*entities.Integration, error) {
	var integration entities.Integration
	if err := r.db.First(&integration, id).Error; err != nil {
		return nil, err
	}
	if err := r.openCredentials(&integration); err != nil {
		return nil, err
	}
	return &integration, nil
}

// FindActive returns all integrations with the active flag set, credentials
// decrypted. The scheduler scans this list every tick.
func (r *Repository) FindActive() ([]entities.Integration, error) {
	var list []entities.Integration
	if err := r.db.Where("active = ?", true).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		if err := r.openCredentials(&list[i]); err != nil {
			return nil, fmt.Errorf("integration %d: %w", list[i].ID, err)
		}
	}
	return list, nil
}

// UpdateStatusAndLastSync records a sync outcome on the integration row.
// Last-writer-wins is fine here: the single-job-per-integration invariant
// means only one in-flight sync writes these fields at a time.
func (r *Repository) UpdateStatusAndLastSync(id uint, status entities.IntegrationStatus, at time.Time) error {
	return r.db.Model(&entities.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"last_sync_at": at,
			"updated_at":   at,
		}).Error
}

func (r *Repository) sealCredentials(integration *entities.Integration) error {
	if r.encryptor == nil {
		return nil
	}
	sealed, err := r.encryptor.Encrypt(integration.Credentials)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}
	integration.Credentials = sealed
	return nil
}

func (r *Repository) openCredentials(integration *entities.Integration) error {
	if r.encryptor == nil {
		return nil
	}
	opened, err := r.encryptor.Decrypt(integration.Credentials)
	if err != nil {
		return fmt.Errorf("decrypt credentials: %w", err)
	}
	integration.Credentials = opened
	return nil
}
