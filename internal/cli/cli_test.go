package cli

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsrange/redrill/internal/runstore"
	"github.com/opsrange/redrill/internal/stratus"
)

var testTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// fakeTool is an in-memory stratus.Client for CLI tests.
type fakeTool struct {
	identity    stratus.Identity
	identityErr error
	techniques  []stratus.Technique
	listErr     error
	warmupErr   error
	detonateErr error
	revertErr   error
	cleanupErr  error
	statusOut   string

	calls []string
}

func (f *fakeTool) Identity(ctx context.Context) (stratus.Identity, error) {
	f.calls = append(f.calls, "identity")
	return f.identity, f.identityErr
}

func (f *fakeTool) ListTechniques(ctx context.Context, tactic string) ([]stratus.Technique, error) {
	f.calls = append(f.calls, "list "+tactic)
	return f.techniques, f.listErr
}

func (f *fakeTool) Warmup(ctx context.Context, techniqueID, region string) error {
	f.calls = append(f.calls, "warmup "+techniqueID)
	return f.warmupErr
}

func (f *fakeTool) Detonate(ctx context.Context, techniqueID string, cleanup bool, region string) error {
	f.calls = append(f.calls, fmt.Sprintf("detonate %s cleanup=%t", techniqueID, cleanup))
	return f.detonateErr
}

func (f *fakeTool) Revert(ctx context.Context, techniqueID, region string) error {
	f.calls = append(f.calls, "revert "+techniqueID)
	return f.revertErr
}

func (f *fakeTool) Cleanup(ctx context.Context, techniqueID, region string) error {
	f.calls = append(f.calls, "cleanup "+techniqueID)
	return f.cleanupErr
}

func (f *fakeTool) Status(ctx context.Context) (string, error) {
	return f.statusOut, nil
}

func defaultTool() *fakeTool {
	return &fakeTool{
		identity: stratus.Identity{Account: "111111111111", ARN: "arn:aws:iam::111111111111:user/drill"},
		techniques: []stratus.Technique{
			{ID: "aws.credential-access.ec2-get-password-data", Name: "Retrieve EC2 Password Data"},
			{ID: "aws.persistence.iam-backdoor-user", Name: "Create an IAM backdoor user"},
		},
	}
}

// executeCLI runs the command tree against an isolated data dir and returns
// captured stdout, stderr and the command error.
func executeCLI(t *testing.T, tool stratus.Client, dataDir string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{Tool: tool})

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--data-dir", dataDir))

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// seedRecord persists a record into dataDir's run store.
func seedRecord(t *testing.T, dataDir string, rec *runstore.Record) {
	t.Helper()
	store := runstore.NewStore(dataDir + "/runs")
	require.NoError(t, store.Save(rec))
}

// detonatedRecord builds a train-mode record that completed detonation.
func detonatedRecord(runID string) *runstore.Record {
	rec := runstore.New(runID, "aws.persistence.iam-backdoor-user",
		"111111111111", "us-east-1", runstore.ModeTrain, "persistence", testTime)
	_ = rec.Advance(runstore.StatusWarmupComplete, testTime.Add(time.Minute))
	_ = rec.Advance(runstore.StatusDetonated, testTime.Add(2*time.Minute))
	return rec
}
