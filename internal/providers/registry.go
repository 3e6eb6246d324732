// Package providers routes integrations to their synchronization handlers.
//
// Every provider is registered twice: a "real" handler that pulls from the
// provider's API and a "mock" handler that generates synthetic but
// schema-valid data. The registry decides which mode applies to an
// integration and falls back to the opposite mode when the preferred one
// has no handler, so an integration without credentials still syncs.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adlytics/adlytics/internal/entities"
)

type Mode string

const (
	ModeReal Mode = "real"
	ModeMock Mode = "mock"
)

// ErrNoHandler is returned by Dispatch when neither mode has a handler
// registered for the integration's provider.
var ErrNoHandler = errors.New("no sync handler registered for provider")

// Result is the uniform outcome contract every handler returns. The
// registry only interprets Status; Counts and Detail are provider-specific
// diagnostics passed through to the sync history.
type Result struct {
	Status string         `json:"status"` // success | ok | partial | error
	Cursor string         `json:"cursor,omitempty"`
	Counts map[string]int `json:"counts,omitempty"`
	Detail string         `json:"detail,omitempty"`
}

// Succeeded reports whether the handler considers the sync successful.
// Handlers written against older provider SDKs report "ok" instead of
// "success"; both count.
func (r *Result) Succeeded() bool {
	return r != nil && (r.Status == "success" || r.Status == "ok")
}

// SyncHandler synchronizes one integration's data from its provider.
type SyncHandler interface {
	Sync(ctx context.Context, integration *entities.Integration) (*Result, error)
}

// SyncHandlerFunc adapts a plain function to the SyncHandler interface.
type SyncHandlerFunc func(ctx context.Context, integration *entities.Integration) (*Result, error)

func (f SyncHandlerFunc) Sync(ctx context.Context, integration *entities.Integration) (*Result, error) {
	return f(ctx, integration)
}

// aliases maps the provider spellings tenants have configured over time to
// canonical keys.
var aliases = map[string]string{
	"googleads":      "google_ads",
	"google":         "google_ads",
	"adwords":        "google_ads",
	"facebook":       "facebook_ads",
	"meta":           "facebook_ads",
	"meta_ads":       "facebook_ads",
	"tiktok":         "tiktok_ads",
	"line":           "line_ads",
	"gsc":            "google_search_console",
	"search_console": "google_search_console",
}

// Normalize lowercases a raw provider key, collapses separators to
// underscores, and resolves known aliases to the canonical key.
func Normalize(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return key
}

// Dispatch describes one resolved and executed sync: which canonical
// provider ran, in which mode, and what the handler returned.
type Dispatch struct {
	Provider string  `json:"provider"`
	Mode     Mode    `json:"mode"`
	Result   *Result `json:"result,omitempty"`
}

// Registry holds the real and mock handler tables. It is populated at
// startup and treated as read-only afterwards, so no locking is needed.
type Registry struct {
	forceMock bool
	real      map[string]SyncHandler
	mock      map[string]SyncHandler
}

func NewRegistry(forceMock bool) *Registry {
	return &Registry{
		forceMock: forceMock,
		real:      make(map[string]SyncHandler),
		mock:      make(map[string]SyncHandler),
	}
}

// Register adds a handler for a provider in the given mode. The provider
// key is normalized, so registrations and lookups agree on spelling.
func (r *Registry) Register(provider string, mode Mode, handler SyncHandler) {
	key := Normalize(provider)
	if mode == ModeMock {
		r.mock[key] = handler
		return
	}
	r.real[key] = handler
}

// Resolve looks up the handler for a provider in the given mode.
func (r *Registry) Resolve(raw string, mode Mode) (SyncHandler, bool) {
	key := Normalize(raw)
	if mode == ModeMock {
		h, ok := r.mock[key]
		return h, ok
	}
	h, ok := r.real[key]
	return h, ok
}

// DecideMode picks real or mock for an integration. Mock wins when the
// integration asks for it, when the process-wide force-mock flag is set, or
// when the credentials blob has no usable fields. Pure function, no I/O.
func (r *Registry) DecideMode(integration *entities.Integration) Mode {
	if r.forceMock {
		return ModeMock
	}
	if integration.SyncConfig().MockMode {
		return ModeMock
	}
	if !integration.HasCredentials() {
		return ModeMock
	}
	return ModeReal
}

// Dispatch resolves and runs the handler for an integration. When the
// decided (or forced) mode has no handler, the opposite mode's handler is
// used instead, so a provider that only ships a mock still syncs and a
// mock-less provider still runs for real.
func (r *Registry) Dispatch(ctx context.Context, integration *entities.Integration, forced *Mode) (*Dispatch, error) {
	provider := Normalize(integration.Provider)

	mode := r.DecideMode(integration)
	if forced != nil {
		mode = *forced
	}

	handler, ok := r.Resolve(provider, mode)
	if !ok {
		fallback := ModeMock
		if mode == ModeMock {
			fallback = ModeReal
		}
		if handler, ok = r.Resolve(provider, fallback); !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoHandler, provider)
		}
		mode = fallback
	}

	result, err := handler.Sync(ctx, integration)
	if err != nil {
		return &Dispatch{Provider: provider, Mode: mode}, fmt.Errorf("%s sync (%s mode): %w", provider, mode, err)
	}

	return &Dispatch{Provider: provider, Mode: mode, Result: result}, nil
}

// Providers returns the canonical keys that have at least one handler, for
// status reporting.
func (r *Registry) Providers() []string {
	seen := make(map[string]struct{}, len(r.real)+len(r.mock))
	for k := range r.real {
		seen[k] = struct{}{}
	}
	for k := range r.mock {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return keys
}
