// Command seed_demo creates a database with sample tenant integrations so
// the pipeline can be exercised locally without real provider credentials.
// Usage: go run cmd/seed_demo/main.go [-db path/to/adlytics.db]
package main

import (
	"flag"
	"log"

	"github.com/adlytics/adlytics/internal/config"
	"github.com/adlytics/adlytics/internal/database"
	"github.com/adlytics/adlytics/internal/database/integrations"
	"github.com/adlytics/adlytics/internal/entities"
)

func main() {
	dbPath := flag.String("db", config.DefaultDatabasePath, "path to the database file")
	flag.Parse()

	log.Printf("Seeding demo integrations into %s...", *dbPath)

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	// Demo data is mock-only, so credentials stay unencrypted here.
	repo := integrations.NewRepository(db.DB, nil)

	for _, integration := range demoIntegrations() {
		if err := repo.Create(&integration); err != nil {
			log.Printf("Failed to create %s integration for tenant %d: %v", integration.Provider, integration.TenantID, err)
			continue
		}
		log.Printf("Created: tenant=%d provider=%s", integration.TenantID, integration.Provider)
	}

	log.Printf("Done. Start the server and POST /api/pipeline/run to sync.")
}

func demoIntegrations() []entities.Integration {
	return []entities.Integration{
		{
			TenantID: 1,
			Provider: "google_ads",
			Config:   `{"mock_mode":true,"lookback_days":30}`,
			Active:   true,
			Status:   entities.IntegrationStatusActive,
		},
		{
			TenantID: 1,
			Provider: "facebook_ads",
			Config:   `{"mock_mode":true,"lookback_days":14}`,
			Active:   true,
			Status:   entities.IntegrationStatusActive,
		},
		{
			TenantID: 2,
			Provider: "tiktok_ads",
			// No credentials: mode decision falls back to mock on its own.
			Active: true,
			Status: entities.IntegrationStatusActive,
		},
		{
			TenantID: 2,
			Provider: "gsc",
			Config:   `{"mock_mode":true,"lookback_days":90}`,
			Active:   true,
			Status:   entities.IntegrationStatusActive,
		},
		{
			TenantID: 3,
			Provider: "line",
			Config:   `{"mock_mode":true}`,
			Active:   false, // Inactive: the scheduler must skip it
			Status:   entities.IntegrationStatusActive,
		},
	}
}
