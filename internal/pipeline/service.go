package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/adlytics/adlytics/internal/database/history"
	"github.com/adlytics/adlytics/internal/database/integrations"
	"github.com/adlytics/adlytics/internal/database/jobs"
	"github.com/adlytics/adlytics/internal/database/syncstate"
	"github.com/adlytics/adlytics/internal/entities"
	"github.com/adlytics/adlytics/internal/providers"
)

// Service exposes the pipeline to synchronous callers: the "run now" path
// that syncs integrations immediately (bypassing the queue) and the status
// query the dashboard polls.
type Service struct {
	integrations *integrations.Repository
	states       *syncstate.Repository
	jobs         *jobs.Repository
	executor     *executor
}

// NewService creates a pipeline service.
func NewService(integrationsRepo *integrations.Repository, statesRepo *syncstate.Repository, jobsRepo *jobs.Repository, historyRepo *history.Repository, registry *providers.Registry, syncInterval time.Duration) *Service {
	if syncInterval <= 0 {
		syncInterval = time.Hour
	}
	return &Service{
		integrations: integrationsRepo,
		states:       statesRepo,
		jobs:         jobsRepo,
		executor: &executor{
			integrations: integrationsRepo,
			states:       statesRepo,
			history:      historyRepo,
			registry:     registry,
			interval:     syncInterval,
		},
	}
}

// Outcome is the per-integration result of a RunNow call.
type Outcome struct {
	IntegrationID uint           `json:"integration_id"`
	TenantID      uint           `json:"tenant_id"`
	Provider      string         `json:"provider"`
	Mode          providers.Mode `json:"mode,omitempty"`
	Synced        bool           `json:"synced"`
	Skipped       bool           `json:"skipped,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// RunNow synchronously syncs every active integration, optionally filtered
// to a provider allow-list. Without force, integrations that aren't due are
// skipped. Failures here still flow into sync history and the integration's
// status, independent of the queue's retry machinery.
func (s *Service) RunNow(ctx context.Context, providerFilter []string, force bool) ([]Outcome, error) {
	allowed := make(map[string]struct{}, len(providerFilter))
	for _, p := range providerFilter {
		allowed[providers.Normalize(p)] = struct{}{}
	}

	active, err := s.integrations.FindActive()
	if err != nil {
		return nil, fmt.Errorf("scan active integrations: %w", err)
	}

	now := time.Now()
	outcomes := make([]Outcome, 0, len(active))
	for i := range active {
		integration := &active[i]
		provider := providers.Normalize(integration.Provider)

		if len(allowed) > 0 {
			if _, ok := allowed[provider]; !ok {
				continue
			}
		}

		outcome := Outcome{
			IntegrationID: integration.ID,
			TenantID:      integration.TenantID,
			Provider:      provider,
		}

		state, err := s.states.EnsureForIntegration(integration, now)
		if err != nil {
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}
		if !force && !syncstate.IsDue(state, now) {
			outcome.Skipped = true
			outcomes = append(outcomes, outcome)
			continue
		}

		dispatch, err := s.executor.execute(ctx, integration, nil)
		if dispatch != nil {
			outcome.Mode = dispatch.Mode
		}
		if err != nil {
			outcome.Error = err.Error()
			log.Printf("Pipeline: direct sync of integration %d (%s) failed: %v", integration.ID, provider, err)
		} else {
			outcome.Synced = true
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// IntegrationStatus is one row of the status query.
type IntegrationStatus struct {
	IntegrationID uint                       `json:"integration_id"`
	TenantID      uint                       `json:"tenant_id"`
	Provider      string                     `json:"provider"`
	Status        entities.IntegrationStatus `json:"status"`
	LastSyncAt    *time.Time                 `json:"last_sync_at,omitempty"`
	LastSuccessAt *time.Time                 `json:"last_success_at,omitempty"`
	NextRunAt     *time.Time                 `json:"next_run_at,omitempty"`
	Due           bool                       `json:"due"`
	JobInFlight   bool                       `json:"job_in_flight"`
}

// Status reports each active integration's sync standing: provider, status,
// last sync, due-ness, and whether a job is currently queued or running.
func (s *Service) Status(_ context.Context) ([]IntegrationStatus, error) {
	active, err := s.integrations.FindActive()
	if err != nil {
		return nil, fmt.Errorf("scan active integrations: %w", err)
	}

	now := time.Now()
	statuses := make([]IntegrationStatus, 0, len(active))
	for i := range active {
		integration := &active[i]

		row := IntegrationStatus{
			IntegrationID: integration.ID,
			TenantID:      integration.TenantID,
			Provider:      providers.Normalize(integration.Provider),
			Status:        integration.Status,
			LastSyncAt:    integration.LastSyncAt,
		}

		state, err := s.states.Get(integration.ID)
		if err != nil {
			return nil, fmt.Errorf("sync state for integration %d: %w", integration.ID, err)
		}
		if state != nil {
			next := state.NextRunAt
			row.NextRunAt = &next
			row.LastSuccessAt = state.LastSuccessAt
		}
		row.Due = syncstate.IsDue(state, now)

		open, err := s.jobs.HasOpenJob(integration.ID)
		if err != nil {
			return nil, fmt.Errorf("open jobs for integration %d: %w", integration.ID, err)
		}
		row.JobInFlight = open

		statuses = append(statuses, row)
	}

	return statuses, nil
}
