package providers

// CanonicalProviders are the data sources supported out of the box. The
// registry accepts any key, so tenants can wire additional providers by
// registering handlers at startup.
var CanonicalProviders = []string{
	"google_ads",
	"facebook_ads",
	"tiktok_ads",
	"line_ads",
	"google_search_console",
}

// RegisterDefaults populates a registry with the built-in handlers: a
// reporting-API handler in real mode and a synthetic-data handler in mock
// mode for each canonical provider.
func RegisterDefaults(registry *Registry) {
	client := NewReportingClient()
	for _, provider := range CanonicalProviders {
		registry.Register(provider, ModeReal, NewReportingHandler(client, provider))
		registry.Register(provider, ModeMock, NewMockHandler(provider))
	}
}
