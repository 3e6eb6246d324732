package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/adlytics/adlytics/internal/entities"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 8 << 20 // 8 MiB
)

// ReportingClient pulls metric exports over HTTP. Provider-specific wire
// protocols live behind each provider's export gateway; from this side the
// contract is uniform: GET <endpoint>?provider=...&since=...&cursor=... with
// a bearer token, JSON response below.
type ReportingClient struct {
	httpClient *http.Client
}

func NewReportingClient() *ReportingClient {
	return &ReportingClient{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// exportResponse is the body every export gateway returns.
type exportResponse struct {
	Status string         `json:"status"`
	Cursor string         `json:"cursor"`
	Counts map[string]int `json:"counts"`
	Detail string         `json:"detail"`
}

// reportingHandler is the "real" sync handler: it fetches an export for one
// provider using the endpoint and api_key from the integration's
// credentials blob.
type reportingHandler struct {
	client   *ReportingClient
	provider string
}

// NewReportingHandler creates a real sync handler for a provider key backed
// by the shared reporting client.
func NewReportingHandler(client *ReportingClient, provider string) SyncHandler {
	return &reportingHandler{client: client, provider: Normalize(provider)}
}

func (h *reportingHandler) Sync(ctx context.Context, integration *entities.Integration) (*Result, error) {
	creds, err := integration.CredentialsMap()
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	endpoint := creds["endpoint"]
	if endpoint == "" {
		endpoint = integration.SyncConfig().Endpoint
	}
	apiKey := creds["api_key"]
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("%s credentials missing endpoint or api_key", h.provider)
	}

	cfg := integration.SyncConfig()
	since := time.Now().AddDate(0, 0, -cfg.LookbackDays)

	return h.client.fetchExport(ctx, endpoint, apiKey, h.provider, since)
}

func (c *ReportingClient) fetchExport(ctx context.Context, endpoint, apiKey, provider string, since time.Time) (*Result, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	q.Set("provider", provider)
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read export response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("export API returned status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var export exportResponse
	if err := json.Unmarshal(body, &export); err != nil {
		return nil, fmt.Errorf("failed to decode export response: %w", err)
	}

	status := export.Status
	if status == "" {
		status = "success"
	}

	return &Result{
		Status: status,
		Cursor: export.Cursor,
		Counts: export.Counts,
		Detail: export.Detail,
	}, nil
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
