package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `[
	{
		"model_deployment": "azure/gpt-4o",
		"description": "General purpose model",
		"api_key": "key-1",
		"api_endpoint": "https://azure.example.com",
		"api_version": "2024-06-01"
	},
	{
		"model_deployment": "foundry/gpt-4o-agent",
		"description": "Agent with code interpreter",
		"api_endpoint": "https://agents.example.com",
		"model_id": "agent_123"
	},
	{
		"model_deployment": "perplexity/sonar",
		"description": "Web-grounded model",
		"api_key": "key-2"
	}
]`

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "llm_config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalog_FromFile(t *testing.T) {
	path := writeCatalogFile(t, sampleCatalog)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog, 3)
	assert.Equal(t, "azure/gpt-4o", catalog[0].Deployment)
	assert.Equal(t, "agent_123", catalog[1].AgentID)
}

func TestLoadCatalog_EnvTakesPriority(t *testing.T) {
	path := writeCatalogFile(t, sampleCatalog)
	t.Setenv(EnvCatalog, `[{"model_deployment":"azure/o3-mini","description":"env"}]`)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, "azure/o3-mini", catalog[0].Deployment)
}

func TestLoadCatalog_InvalidEnvFallsBackToFile(t *testing.T) {
	path := writeCatalogFile(t, sampleCatalog)
	t.Setenv(EnvCatalog, "{not json")

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, catalog, 3)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	t.Setenv(EnvCatalog, "")

	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestCatalog_ByDeployment(t *testing.T) {
	t.Parallel()

	catalog := Catalog{
		{Deployment: "azure/gpt-4o", APIKey: "key-1"},
		{Deployment: "foundry/gpt-4o-agent", AgentID: "agent_123"},
		{Deployment: "perplexity/sonar", APIKey: "key-2"},
	}

	t.Run("exact match", func(t *testing.T) {
		t.Parallel()

		d, ok := catalog.ByDeployment("foundry/gpt-4o-agent")
		require.True(t, ok)
		assert.Equal(t, "agent_123", d.AgentID)
		assert.Equal(t, ProviderFoundry, d.Provider())
		assert.Equal(t, "gpt-4o-agent", d.ModelName())
	})

	t.Run("miss returns zero descriptor without error", func(t *testing.T) {
		t.Parallel()

		d, ok := catalog.ByDeployment("azure/nonexistent")
		assert.False(t, ok)
		assert.Equal(t, ModelDescriptor{}, d)
	})
}

func TestCatalog_ByModelSuffix(t *testing.T) {
	t.Parallel()

	catalog := Catalog{
		{Deployment: "azure/gpt-4o"},
		{Deployment: "perplexity/sonar"},
	}

	d, ok := catalog.ByModelSuffix("sonar")
	require.True(t, ok)
	assert.Equal(t, "perplexity/sonar", d.Deployment)

	_, ok = catalog.ByModelSuffix("gpt")
	assert.False(t, ok, "suffix match requires the full name segment")
}

func TestModelDescriptor_ProviderParsing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		deployment string
		provider   string
		model      string
	}{
		{"standard pair", "azure/gpt-4o", "azure", "gpt-4o"},
		{"no slash", "gpt-4o", "gpt-4o", "gpt-4o"},
		{"nested name", "azure/team/gpt-4o", "azure", "team/gpt-4o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := ModelDescriptor{Deployment: tt.deployment}
			assert.Equal(t, tt.provider, d.Provider())
			assert.Equal(t, tt.model, d.ModelName())
		})
	}
}
