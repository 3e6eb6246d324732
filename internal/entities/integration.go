package entities

import (
	"encoding/json"
	"time"
)

type IntegrationStatus string

const (
	IntegrationStatusActive IntegrationStatus = "active"
	IntegrationStatusError  IntegrationStatus = "error"
)

// Integration is one tenant's connection to an external marketing data
// provider. Provider keys are free-form strings, not an enum, so new
// providers can be onboarded without a migration.
type Integration struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	TenantID    uint              `gorm:"index" json:"tenant_id"`
	Provider    string            `gorm:"size:100;index" json:"provider"`
	Credentials string            `gorm:"type:text" json:"-"` // JSON blob, encrypted at rest when a key is configured
	Config      string            `gorm:"type:text" json:"config,omitempty"`
	Active      bool              `gorm:"index" json:"active"`
	Status      IntegrationStatus `gorm:"size:20" json:"status"`
	LastSyncAt  *time.Time        `json:"last_sync_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (Integration) TableName() string {
	return "integrations"
}

// SyncConfig is the subset of the integration's config blob the pipeline
// understands. Provider handlers may read additional fields themselves.
type SyncConfig struct {
	MockMode     bool   `json:"mock_mode"`
	LookbackDays int    `json:"lookback_days"`
	Endpoint     string `json:"endpoint,omitempty"`
}

// DefaultLookbackDays is used when the config blob does not set a window.
const DefaultLookbackDays = 30

// SyncConfig parses the config blob. A missing or malformed blob yields
// defaults rather than an error; the pipeline treats config as advisory.
func (i *Integration) SyncConfig() SyncConfig {
	cfg := SyncConfig{LookbackDays: DefaultLookbackDays}
	if i.Config == "" {
		return cfg
	}
	_ = json.Unmarshal([]byte(i.Config), &cfg)
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	return cfg
}

// CredentialsMap parses the credentials blob into a flat string map.
func (i *Integration) CredentialsMap() (map[string]string, error) {
	creds := map[string]string{}
	if i.Credentials == "" {
		return creds, nil
	}
	if err := json.Unmarshal([]byte(i.Credentials), &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// HasCredentials reports whether the credentials blob contains at least one
// non-empty field. An unparseable blob counts as no credentials.
func (i *Integration) HasCredentials() bool {
	creds, err := i.CredentialsMap()
	if err != nil {
		return false
	}
	for _, v := range creds {
		if v != "" {
			return true
		}
	}
	return false
}
