package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand_NoStateNoRuns(t *testing.T) {
	out, _, err := executeCLI(t, defaultTool(), t.TempDir(), "status")
	require.NoError(t, err)

	assert.Contains(t, out, "STRATUS STATUS:")
	assert.Contains(t, out, "(no active state)")
	assert.NotContains(t, out, "RECENT RUNS:")
}

func TestStatusCommand_WithStateAndRuns(t *testing.T) {
	dataDir := t.TempDir()
	seedRecord(t, dataDir, detonatedRecord("20240115T120000Z-deadbeef"))

	tool := defaultTool()
	tool.statusOut = "aws.persistence.iam-backdoor-user  WARM\n"

	out, _, err := executeCLI(t, tool, dataDir, "status")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "status_with_runs", []byte(out))
}

func TestStatusCommand_AppendsMissingNewline(t *testing.T) {
	tool := defaultTool()
	tool.statusOut = "no newline here"

	out, _, err := executeCLI(t, tool, t.TempDir(), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "no newline here\n")
}
