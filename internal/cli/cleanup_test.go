package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrange/redrill/internal/runstore"
)

func TestCleanupCommand_DetonatedRun(t *testing.T) {
	dataDir := t.TempDir()
	seedRecord(t, dataDir, detonatedRecord("20240115T120000Z-deadbeef"))

	tool := defaultTool()
	out, _, err := executeCLI(t, tool, dataDir, "cleanup", "20240115T120000Z-deadbeef")
	require.NoError(t, err)

	assert.Contains(t, out, "Cleaned up run 20240115T120000Z-deadbeef.")
	assert.Contains(t, out, "Technique: aws.persistence.iam-backdoor-user")
	assert.Contains(t, out, "Cleanup complete.")
	assert.Equal(t, []string{
		"revert aws.persistence.iam-backdoor-user",
		"cleanup aws.persistence.iam-backdoor-user",
	}, tool.calls)

	store := runstore.NewStore(dataDir + "/runs")
	rec, err := store.Load("20240115T120000Z-deadbeef")
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusCleaned, rec.Status)
}

func TestCleanupCommand_AlreadyCleaned(t *testing.T) {
	dataDir := t.TempDir()
	rec := detonatedRecord("20240115T120000Z-deadbeef")
	require.NoError(t, rec.MarkCleaned(testTime.Add(3*time.Minute)))
	seedRecord(t, dataDir, rec)

	tool := defaultTool()
	out, _, err := executeCLI(t, tool, dataDir, "cleanup", "20240115T120000Z-deadbeef")
	require.NoError(t, err)

	assert.Contains(t, out, "Run 20240115T120000Z-deadbeef is already cleaned.")
	assert.Empty(t, tool.calls, "a cleaned run must not touch the external tool")
}

func TestCleanupCommand_FailedRunRecovered(t *testing.T) {
	dataDir := t.TempDir()
	rec := runstore.New("20240115T120000Z-0badf00d", "aws.persistence.iam-backdoor-user",
		"111111111111", "us-east-1", runstore.ModeTrain, "", testTime)
	require.NoError(t, rec.MarkFailed("Detonate failed: exit status 1"))
	seedRecord(t, dataDir, rec)

	_, _, err := executeCLI(t, defaultTool(), dataDir, "cleanup", "20240115T120000Z-0badf00d")
	require.NoError(t, err)

	store := runstore.NewStore(dataDir + "/runs")
	got, err := store.Load("20240115T120000Z-0badf00d")
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusCleaned, got.Status)
	assert.NotNil(t, got.CleanedAt)
	// The failure reason stays on the record for later inspection.
	assert.Equal(t, "Detonate failed: exit status 1", got.Error)
}

func TestCleanupCommand_RevertFailureStillCleans(t *testing.T) {
	dataDir := t.TempDir()
	seedRecord(t, dataDir, detonatedRecord("20240115T120000Z-deadbeef"))

	tool := defaultTool()
	tool.revertErr = assert.AnError

	out, errOut, err := executeCLI(t, tool, dataDir, "cleanup", "20240115T120000Z-deadbeef")
	require.NoError(t, err)

	assert.Contains(t, errOut, "WARNING: revert failed:")
	assert.Contains(t, out, "Cleanup complete.")
	// Cleanup is still attempted after the revert failure.
	assert.Contains(t, tool.calls, "cleanup aws.persistence.iam-backdoor-user")

	store := runstore.NewStore(dataDir + "/runs")
	rec, err := store.Load("20240115T120000Z-deadbeef")
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusCleaned, rec.Status)
}

func TestCleanupCommand_NotFound(t *testing.T) {
	_, _, err := executeCLI(t, defaultTool(), t.TempDir(), "cleanup", "20991231T000000Z-ffffffff")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
