package cli

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrange/redrill/internal/runstore"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRevealCommand_Detonated(t *testing.T) {
	dataDir := t.TempDir()
	seedRecord(t, dataDir, detonatedRecord("20240115T120000Z-deadbeef"))

	out, _, err := executeCLI(t, defaultTool(), dataDir, "reveal", "20240115T120000Z-deadbeef")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "reveal_detonated", []byte(out))
}

func TestRevealCommand_FailedRun(t *testing.T) {
	dataDir := t.TempDir()
	rec := runstore.New("20240115T120000Z-0badf00d", "aws.credential-access.ec2-get-password-data",
		"111111111111", "us-east-1", runstore.ModeTrain, "", testTime)
	require.NoError(t, rec.MarkFailed("Warmup failed: exit status 1"))
	seedRecord(t, dataDir, rec)

	out, _, err := executeCLI(t, defaultTool(), dataDir, "reveal", "20240115T120000Z-0badf00d")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "reveal_failed", []byte(out))
}

func TestRevealCommand_NotFound(t *testing.T) {
	dataDir := t.TempDir()
	seedRecord(t, dataDir, detonatedRecord("20240115T120000Z-deadbeef"))

	_, errOut, err := executeCLI(t, defaultTool(), dataDir, "reveal", "20991231T000000Z-ffffffff")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "Available runs:")
	assert.Contains(t, errOut, "  20240115T120000Z-deadbeef")
}

func TestRevealCommand_NotFoundNoRuns(t *testing.T) {
	_, errOut, err := executeCLI(t, defaultTool(), t.TempDir(), "reveal", "20991231T000000Z-ffffffff")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.NotContains(t, errOut, "Available runs:")
}

func TestRevealCommand_CleanedRun(t *testing.T) {
	dataDir := t.TempDir()
	rec := detonatedRecord("20240115T120000Z-deadbeef")
	require.NoError(t, rec.MarkCleaned(testTime.Add(3*time.Minute)))
	seedRecord(t, dataDir, rec)

	out, _, err := executeCLI(t, defaultTool(), dataDir, "reveal", "20240115T120000Z-deadbeef")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:     cleaned")
	assert.Contains(t, out, "Cleaned:    2024-01-15T12:03:00Z")
}
