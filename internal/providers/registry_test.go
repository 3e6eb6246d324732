package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlytics/adlytics/internal/entities"
)

func staticHandler(result *Result, err error) SyncHandler {
	return SyncHandlerFunc(func(context.Context, *entities.Integration) (*Result, error) {
		return result, err
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"googleads", "google_ads"},
		{"GoogleAds", "google_ads"},
		{"google_ads", "google_ads"},
		{"google-ads", "google_ads"},
		{"  Google Ads  ", "google_ads"},
		{"line", "line_ads"},
		{"gsc", "google_search_console"},
		{"meta", "facebook_ads"},
		{"tiktok", "tiktok_ads"},
		{"some_new_provider", "some_new_provider"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.raw))
		})
	}
}

func TestDecideMode(t *testing.T) {
	registry := NewRegistry(false)

	t.Run("real when credentials present", func(t *testing.T) {
		integration := &entities.Integration{Credentials: `{"api_key":"k","endpoint":"https://x"}`}
		assert.Equal(t, ModeReal, registry.DecideMode(integration))
	})

	t.Run("mock when credentials empty", func(t *testing.T) {
		integration := &entities.Integration{}
		assert.Equal(t, ModeMock, registry.DecideMode(integration))
	})

	t.Run("mock when all credential fields empty", func(t *testing.T) {
		integration := &entities.Integration{Credentials: `{"api_key":"","endpoint":""}`}
		assert.Equal(t, ModeMock, registry.DecideMode(integration))
	})

	t.Run("mock when credentials unparseable", func(t *testing.T) {
		integration := &entities.Integration{Credentials: `not json`}
		assert.Equal(t, ModeMock, registry.DecideMode(integration))
	})

	t.Run("mock when config requests it", func(t *testing.T) {
		integration := &entities.Integration{
			Credentials: `{"api_key":"k"}`,
			Config:      `{"mock_mode":true}`,
		}
		assert.Equal(t, ModeMock, registry.DecideMode(integration))
	})

	t.Run("mock when force-mock flag set", func(t *testing.T) {
		forced := NewRegistry(true)
		integration := &entities.Integration{Credentials: `{"api_key":"k"}`}
		assert.Equal(t, ModeMock, forced.DecideMode(integration))
	})
}

func TestDispatch_FallbackToOppositeMode(t *testing.T) {
	registry := NewRegistry(false)
	// Only a mock handler is registered; an integration with credentials
	// decides real but must still sync via the mock.
	registry.Register("google_ads", ModeMock, staticHandler(&Result{Status: "ok"}, nil))

	integration := &entities.Integration{Provider: "googleads", Credentials: `{"api_key":"k"}`}
	require.Equal(t, ModeReal, registry.DecideMode(integration))

	dispatch, err := registry.Dispatch(context.Background(), integration, nil)
	require.NoError(t, err)
	assert.Equal(t, "google_ads", dispatch.Provider)
	assert.Equal(t, ModeMock, dispatch.Mode)
	assert.True(t, dispatch.Result.Succeeded())
}

func TestDispatch_FallbackToRealWhenNoMock(t *testing.T) {
	registry := NewRegistry(false)
	registry.Register("facebook_ads", ModeReal, staticHandler(&Result{Status: "success"}, nil))

	// No credentials decides mock, but only a real handler exists.
	integration := &entities.Integration{Provider: "facebook_ads"}
	dispatch, err := registry.Dispatch(context.Background(), integration, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeReal, dispatch.Mode)
}

func TestDispatch_NoHandlerEitherMode(t *testing.T) {
	registry := NewRegistry(false)

	integration := &entities.Integration{Provider: "unknown_provider"}
	_, err := registry.Dispatch(context.Background(), integration, nil)
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestDispatch_ForcedModeOverridesDecision(t *testing.T) {
	registry := NewRegistry(false)
	registry.Register("tiktok_ads", ModeReal, staticHandler(&Result{Status: "success"}, nil))
	registry.Register("tiktok_ads", ModeMock, staticHandler(&Result{Status: "ok"}, nil))

	integration := &entities.Integration{Provider: "tiktok", Credentials: `{"api_key":"k"}`}

	forced := ModeMock
	dispatch, err := registry.Dispatch(context.Background(), integration, &forced)
	require.NoError(t, err)
	assert.Equal(t, ModeMock, dispatch.Mode)
	assert.Equal(t, "ok", dispatch.Result.Status)
}

func TestDispatch_HandlerError(t *testing.T) {
	registry := NewRegistry(false)
	handlerErr := errors.New("rate limited")
	registry.Register("line_ads", ModeMock, staticHandler(nil, handlerErr))

	integration := &entities.Integration{Provider: "line"}
	dispatch, err := registry.Dispatch(context.Background(), integration, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, handlerErr)
	require.NotNil(t, dispatch)
	assert.Equal(t, "line_ads", dispatch.Provider)
	assert.Nil(t, dispatch.Result)
}

func TestResult_Succeeded(t *testing.T) {
	assert.True(t, (&Result{Status: "success"}).Succeeded())
	assert.True(t, (&Result{Status: "ok"}).Succeeded())
	assert.False(t, (&Result{Status: "partial"}).Succeeded())
	assert.False(t, (&Result{Status: "error"}).Succeeded())
	assert.False(t, (*Result)(nil).Succeeded())
}

func TestMockHandler(t *testing.T) {
	handler := NewMockHandler("google_ads")

	integration := &entities.Integration{ID: 7, Config: `{"lookback_days":14}`}
	result, err := handler.Sync(context.Background(), integration)
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.NotEmpty(t, result.Cursor)
	assert.GreaterOrEqual(t, result.Counts["campaigns"], 3)
	assert.Equal(t, result.Counts["campaigns"]*14, result.Counts["metric_rows"])
}

func TestRegisterDefaults(t *testing.T) {
	registry := NewRegistry(false)
	RegisterDefaults(registry)

	for _, provider := range CanonicalProviders {
		_, hasReal := registry.Resolve(provider, ModeReal)
		_, hasMock := registry.Resolve(provider, ModeMock)
		assert.True(t, hasReal, "missing real handler for %s", provider)
		assert.True(t, hasMock, "missing mock handler for %s", provider)
	}
}
