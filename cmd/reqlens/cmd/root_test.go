package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags clears the package-level persistent flag state between tests.
func resetFlags() {
	debugMode = false
	dataDirFlag = ""
	offlineMode = false
}

// execute runs a fresh root command with the given args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Help_ListsSubcommands(t *testing.T) {
	output, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "ingest", "search", "analyze", "status", "sample", "config", "version"} {
		assert.Contains(t, output, sub, "help should list the %s command", sub)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	output, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, output, "reqlens version")
}

func TestRootCmd_UnknownCommand_Fails(t *testing.T) {
	_, err := execute(t, "definitely-not-a-command")
	require.Error(t, err)
}

func TestIngestCmd_NoInput_Fails(t *testing.T) {
	_, err := execute(t, "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to ingest")
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, err := execute(t, "search")
	require.Error(t, err)
}
