package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 50, cfg.Source.PageSize)
	assert.Equal(t, 3, cfg.Source.MaxRetries)
	assert.Equal(t, "hnsw", cfg.Store.VectorBackend)
	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.4, cfg.Search.RuleWeight)
	assert.Equal(t, 0.5, cfg.Analysis.RuleConfidenceThreshold)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.True(t, cfg.Ingest.SkipEmpty)
	assert.True(t, cfg.Ingest.AutoGenerateIDs)

	require.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_UsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
source:
  base_url: https://reqs.example.com
  page_size: 25
embeddings:
  provider: static
search:
  semantic_weight: 0.7
  rule_weight: 0.3
store:
  vector_backend: memory
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".reqlens.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://reqs.example.com", cfg.Source.BaseURL)
	assert.Equal(t, 25, cfg.Source.PageSize)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, "memory", cfg.Store.VectorBackend)

	// Untouched fields keep their defaults.
	assert.Equal(t, 3, cfg.Source.MaxRetries)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "embeddings:\n  provider: static\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".reqlens.yaml"), []byte(yaml), 0o644))

	t.Setenv("REQLENS_EMBEDDINGS_PROVIDER", "ollama")
	t.Setenv("REQLENS_BASE_URL", "https://env.example.com")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "https://env.example.com", cfg.Source.BaseURL)
}

func TestLoad_MalformedYAML_Fails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".reqlens.yaml"), []byte("{not yaml"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.SemanticWeight = 0.8
	cfg.Search.RuleWeight = 0.4

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must equal 1.0")
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	cfg := NewConfig()
	cfg.Embeddings.Provider = "quantum"

	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.Store.VectorBackend = "flatfile"

	require.Error(t, cfg.Validate())
}

func TestValidate_ThresholdBounds(t *testing.T) {
	cfg := NewConfig()
	cfg.Analysis.RuleConfidenceThreshold = 1.5

	require.Error(t, cfg.Validate())
}

func TestDataDir_ExplicitWins(t *testing.T) {
	cfg := NewConfig()
	cfg.Store.DataDir = "/tmp/custom-index"

	assert.Equal(t, "/tmp/custom-index", cfg.DataDir())
}

func TestDataDir_DefaultUnderHome(t *testing.T) {
	cfg := NewConfig()
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".reqlens", "index"), cfg.DataDir())
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".reqlens.yaml")

	original := NewConfig()
	original.Source.BaseURL = "https://reqs.example.com"
	require.NoError(t, original.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, original.Source.BaseURL, loaded.Source.BaseURL)
	assert.Equal(t, original.Search, loaded.Search)
}
