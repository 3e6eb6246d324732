package providers

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/adlytics/adlytics/internal/entities"
)

// mockHandler generates synthetic but schema-valid sync results for one
// provider. It is used when an integration has no credentials, explicitly
// requests mock mode, or the process runs with FORCE_MOCK_PROVIDERS.
type mockHandler struct {
	provider string
}

// NewMockHandler creates a mock sync handler for a provider key.
func NewMockHandler(provider string) SyncHandler {
	return &mockHandler{provider: Normalize(provider)}
}

func (h *mockHandler) Sync(_ context.Context, integration *entities.Integration) (*Result, error) {
	cfg := integration.SyncConfig()

	// Seed from the integration so repeated runs produce stable shapes
	// while different integrations don't all report identical numbers.
	rng := rand.New(rand.NewSource(int64(integration.ID)))

	campaigns := 3 + rng.Intn(5)
	metricRows := cfg.LookbackDays * campaigns

	return &Result{
		Status: "ok",
		Cursor: fmt.Sprintf("mock:%s:%d", h.provider, time.Now().Unix()),
		Counts: map[string]int{
			"campaigns":   campaigns,
			"metric_rows": metricRows,
		},
		Detail: fmt.Sprintf("generated %d days of synthetic %s data", cfg.LookbackDays, h.provider),
	}, nil
}
