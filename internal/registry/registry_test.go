package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sap-samples/ai-core-gateway/internal/aicore"
	"github.com/sap-samples/ai-core-gateway/internal/config"
	"github.com/sap-samples/ai-core-gateway/internal/family"
	"github.com/sap-samples/ai-core-gateway/internal/token"
)

func newTestRegistry(t *testing.T, deploymentsBody string, cfg *config.Config) (*Registry, *httptest.Server) {
	t.Helper()
	uaa := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	t.Cleanup(uaa.Close)

	status := http.StatusOK
	body := deploymentsBody
	aiCore := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(aiCore.Close)

	cfg.Credentials.UAATokenURL = uaa.URL
	cfg.Credentials.UAAClientID = "id"
	cfg.Credentials.UAAClientSecret = "secret"
	cfg.Credentials.AICoreAPIURL = aiCore.URL
	cfg.Credentials.ResourceGroup = "default"
	cfg.RefreshIntervalSecs = 600

	tc := token.New(cfg.Credentials, http.DefaultClient)
	client := aicore.NewClient(cfg.Credentials, tc)
	return New(client, cfg), aiCore
}

const sampleDeployments = `{
	"count": 2,
	"resources": [
		{"id": "dep-claude", "status": "RUNNING", "deploymentUrl": "https://d.example/claude",
		 "details": {"resources": {"backendDetails": {"model": {"name": "claude-sonnet-4-5-20250929"}}}}},
		{"id": "dep-unclaimed", "status": "RUNNING", "configurationName": "auto-gpt4",
		 "deploymentUrl": "https://d.example/gpt4",
		 "details": {"resources": {"backendDetails": {"model": {"name": "gpt-4"}}}}}
	]
}`

func TestRegistry_ExactMatch(t *testing.T) {
	cfg := &config.Config{
		Models: []config.ModelEntry{{Name: "claude-sonnet-4-5", AICoreModelName: "claude-sonnet-4-5-20250929"}},
	}
	r, _ := newTestRegistry(t, sampleDeployments, cfg)
	require.NoError(t, r.Refresh(context.Background()))

	b, ok := r.Resolve("claude-sonnet-4-5")
	require.True(t, ok)
	assert.Equal(t, "https://d.example/claude", b.DeploymentURL)
	assert.Equal(t, family.Claude, b.Family)
}

func TestRegistry_AutoDiscoveredEntryNotClaimedByConfig(t *testing.T) {
	cfg := &config.Config{
		Models: []config.ModelEntry{{Name: "claude-sonnet-4-5", AICoreModelName: "claude-sonnet-4-5-20250929"}},
	}
	r, _ := newTestRegistry(t, sampleDeployments, cfg)
	require.NoError(t, r.Refresh(context.Background()))

	b, ok := r.Resolve("auto-gpt4")
	require.True(t, ok)
	assert.Equal(t, "https://d.example/gpt4", b.DeploymentURL)
}

func TestRegistry_FallbackResolvesOnlyIfFallbackItselfResolves(t *testing.T) {
	cfg := &config.Config{
		Models:         []config.ModelEntry{{Name: "claude-sonnet-4-5", AICoreModelName: "claude-sonnet-4-5-20250929"}},
		FallbackModels: config.FallbackModels{Claude: "claude-sonnet-4-5"},
	}
	r, _ := newTestRegistry(t, sampleDeployments, cfg)
	require.NoError(t, r.Refresh(context.Background()))

	// S4: claude-opus-9 has no direct binding, falls back to claude-sonnet-4-5.
	b, ok := r.Resolve("claude-opus-9")
	require.True(t, ok)
	assert.Equal(t, "https://d.example/claude", b.DeploymentURL)
}

func TestRegistry_FallbackInertWhenItsOwnNameDoesNotResolve(t *testing.T) {
	cfg := &config.Config{
		FallbackModels: config.FallbackModels{Claude: "claude-sonnet-4-5"}, // never configured/discovered
	}
	r, _ := newTestRegistry(t, sampleDeployments, cfg)
	require.NoError(t, r.Refresh(context.Background()))

	_, ok := r.Resolve("claude-opus-9")
	assert.False(t, ok, "fallback must be inert when its own logical_name is absent from the snapshot")
}

func TestRegistry_ConfiguredEntryPrecedenceOverAutoDiscovered(t *testing.T) {
	deployments := `{
		"count": 1,
		"resources": [
			{"id": "dep-1", "status": "RUNNING", "configurationName": "gpt-4",
			 "deploymentUrl": "https://d.example/auto", "details": {"resources": {"backendDetails": {"model": {"name": "gpt-4"}}}}}
		]
	}`
	cfg := &config.Config{
		Models: []config.ModelEntry{{Name: "gpt-4", DeploymentID: "dep-1"}},
	}
	r, _ := newTestRegistry(t, deployments, cfg)
	require.NoError(t, r.Refresh(context.Background()))

	snap := r.Current()
	assert.Len(t, snap.Bindings(), 1, "the auto-discovered entry must not duplicate the configured one")
}

func TestRegistry_AliasMatchPicksMostSpecificPrefix(t *testing.T) {
	cfg := &config.Config{
		Models: []config.ModelEntry{
			{Name: "claude-sonnet-4-5", AICoreModelName: "claude-sonnet-4-5-20250929", Aliases: []string{"claude-sonnet-*", "claude-sonnet-4-5-*"}},
		},
	}
	r, _ := newTestRegistry(t, sampleDeployments, cfg)
	require.NoError(t, r.Refresh(context.Background()))

	b, ok := r.Resolve("claude-sonnet-4-5-20250929-preview")
	require.True(t, ok)
	assert.Equal(t, "https://d.example/claude", b.DeploymentURL)
}

func TestRegistry_NonRunningDeploymentExcluded(t *testing.T) {
	deployments := `{
		"count": 1,
		"resources": [{"id": "dep-1", "status": "STOPPED", "configurationName": "gpt-4", "deploymentUrl": "https://d.example/gpt4"}]
	}`
	cfg := &config.Config{}
	r, _ := newTestRegistry(t, deployments, cfg)
	require.NoError(t, r.Refresh(context.Background()))

	_, ok := r.Resolve("gpt-4")
	assert.False(t, ok)
}

func TestRegistry_RefreshFailureRetainsPreviousSnapshot(t *testing.T) {
	cfg := &config.Config{
		Models: []config.ModelEntry{{Name: "claude-sonnet-4-5", AICoreModelName: "claude-sonnet-4-5-20250929"}},
	}
	r, srv := newTestRegistry(t, sampleDeployments, cfg)
	require.NoError(t, r.Refresh(context.Background()))

	before, ok := r.Resolve("claude-sonnet-4-5")
	require.True(t, ok)

	// Redirect the mock to fail on the next refresh (S6).
	srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := r.Refresh(context.Background())
	require.Error(t, err)

	after, ok := r.Resolve("claude-sonnet-4-5")
	require.True(t, ok, "a failed refresh must never empty the snapshot")
	assert.Equal(t, before.DeploymentURL, after.DeploymentURL)
}

func TestGlobMatches(t *testing.T) {
	ok, specificity := globMatches("claude-sonnet-4-5-*", "claude-sonnet-4-5-20250929")
	assert.True(t, ok)
	assert.Equal(t, len("claude-sonnet-4-5-"), specificity)

	ok, _ = globMatches("gemini-*", "claude-3")
	assert.False(t, ok)

	ok, specificity = globMatches("gpt-4", "gpt-4")
	assert.True(t, ok)
	assert.Equal(t, len("gpt-4"), specificity)
}
