package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/adlytics/adlytics/internal/database/history"
	"github.com/adlytics/adlytics/internal/database/integrations"
	"github.com/adlytics/adlytics/internal/database/syncstate"
	"github.com/adlytics/adlytics/internal/entities"
	"github.com/adlytics/adlytics/internal/providers"
)

// executor performs one sync for one integration and applies its side
// effects: integration status and last-sync timestamp, a sync history row,
// and, on success, the advanced cursor and next-run time. Both the worker
// pool and the direct-sync path run through it so the two paths cannot
// drift apart.
type executor struct {
	integrations *integrations.Repository
	states       *syncstate.Repository
	history      *history.Repository
	registry     *providers.Registry
	interval     time.Duration
}

// execute dispatches the integration and records the outcome. The returned
// error is nil only for a successful sync; side-effect write failures are
// logged but don't overturn the sync outcome.
func (e *executor) execute(ctx context.Context, integration *entities.Integration, forced *providers.Mode) (*providers.Dispatch, error) {
	dispatch, err := e.registry.Dispatch(ctx, integration, forced)
	if err == nil && !dispatch.Result.Succeeded() {
		err = fmt.Errorf("%s handler reported status %q", dispatch.Provider, dispatch.Result.Status)
	}

	provider := providers.Normalize(integration.Provider)
	if dispatch != nil {
		provider = dispatch.Provider
	}

	now := time.Now()
	status := entities.IntegrationStatusActive
	outcome := entities.SyncOutcomeSuccess
	errMsg := ""
	if err != nil {
		status = entities.IntegrationStatusError
		outcome = entities.SyncOutcomeError
		errMsg = err.Error()
	}

	if uErr := e.integrations.UpdateStatusAndLastSync(integration.ID, status, now); uErr != nil {
		log.Printf("Pipeline: failed to update integration %d status: %v", integration.ID, uErr)
	}

	payload := ""
	if dispatch != nil {
		if encoded, mErr := json.Marshal(dispatch); mErr == nil {
			payload = string(encoded)
		}
	}
	if hErr := e.history.Append(integration.TenantID, integration.ID, provider, outcome, payload, errMsg, now); hErr != nil {
		log.Printf("Pipeline: failed to append sync history for integration %d: %v", integration.ID, hErr)
	}

	if err == nil {
		if sErr := e.states.RecordSuccess(integration.ID, integration.TenantID, provider, dispatch.Result.Cursor, now, e.interval); sErr != nil {
			log.Printf("Pipeline: failed to record sync state for integration %d: %v", integration.ID, sErr)
		}
	}

	return dispatch, err
}
