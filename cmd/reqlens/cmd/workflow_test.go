package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkflow_SampleIngestSearch exercises the full CLI loop: write sample
// data, build an index, then query it. Offline mode keeps everything local.
func TestWorkflow_SampleIngestSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end workflow in short mode")
	}

	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "index")
	csvPath := filepath.Join(tmpDir, "sample.csv")

	output, err := execute(t, "sample", csvPath)
	require.NoError(t, err)
	assert.Contains(t, output, "15 sample requirement(s)")
	require.FileExists(t, csvPath)

	output, err = execute(t, "ingest", csvPath, "--offline", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, output, "15 requirement(s) indexed")

	// The index persists across commands via the data directory.
	output, err = execute(t, "status", "--offline", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, output, "Requirements:   15")

	output, err = execute(t, "search", "mortgage approval rules", "--offline", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, output, "REQ-", "search should surface sample requirements")
	assert.Contains(t, output, "rule", "rule-intent query should surface matched rules")

	output, err = execute(t, "search", "credit score", "--rules", "--offline", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, output, "condition:")
}

func TestIngestCmd_SampleFlag_BuildsIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end workflow in short mode")
	}

	dataDir := filepath.Join(t.TempDir(), "index")

	output, err := execute(t, "ingest", "--sample", "--offline", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, output, "15 requirement(s) indexed")
	require.FileExists(t, filepath.Join(dataDir, "sample_requirements.csv"))
}

func TestAnalyzeCmd_DetectsConditionalRule(t *testing.T) {
	dataDir := t.TempDir()

	output, err := execute(t,
		"analyze", "If credit score is above 650, then approve the mortgage application.",
		"--offline", "--data-dir", dataDir)
	require.NoError(t, err)

	assert.Contains(t, output, "business-rule")
	assert.Contains(t, output, "conditional")
	assert.Contains(t, output, "credit score")
}

func TestConfigCmd_InitAndShow(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	output, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, output, ".reqlens.yaml")
	require.FileExists(t, filepath.Join(tmpDir, ".reqlens.yaml"))

	// Re-running without --force must not clobber the existing file.
	_, err = execute(t, "config", "init")
	require.Error(t, err)

	output, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "embeddings:")
	assert.Contains(t, output, "vector_backend: hnsw")
}
