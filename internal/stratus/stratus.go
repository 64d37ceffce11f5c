// Package stratus wraps the external collaborators of a run: the
// stratus-red-team CLI (catalog, warmup, detonation, revert, cleanup) and the
// AWS CLI (caller identity for the safety check). Everything is behind the
// Client interface so the orchestrator and its tests never fork a process.
package stratus

import (
	"context"
	"strings"
)

// Technique is one catalog entry. IDs are dotted namespace strings
// (platform.category.name), stable across the external catalog.
type Technique struct {
	ID   string
	Name string
}

// Identity describes the current execution context.
type Identity struct {
	Account string
	ARN     string
}

// Client is the external-tool surface consumed by the run orchestrator.
type Client interface {
	// Identity returns the current AWS account and principal ARN.
	Identity(ctx context.Context) (Identity, error)

	// ListTechniques returns the AWS technique catalog, optionally
	// filtered by MITRE ATT&CK tactic.
	ListTechniques(ctx context.Context, tactic string) ([]Technique, error)

	// Warmup provisions the technique's prerequisite infrastructure in
	// the given region. Non-zero completion is a failure.
	Warmup(ctx context.Context, techniqueID, region string) error

	// Detonate executes the technique. With cleanup set, teardown is
	// requested as part of the same invocation.
	Detonate(ctx context.Context, techniqueID string, cleanup bool, region string) error

	// Revert undoes detonation effects. Best-effort from the caller's
	// point of view: a returned error is reported, not fatal.
	Revert(ctx context.Context, techniqueID, region string) error

	// Cleanup removes warmup infrastructure. Best-effort like Revert.
	Cleanup(ctx context.Context, techniqueID, region string) error

	// Status returns the external tool's own state report, verbatim.
	Status(ctx context.Context) (string, error)
}

// ValidTactics are the MITRE ATT&CK tactics accepted as catalog filters.
var ValidTactics = []string{
	"initial-access",
	"execution",
	"persistence",
	"privilege-escalation",
	"defense-evasion",
	"credential-access",
	"discovery",
	"lateral-movement",
	"collection",
	"exfiltration",
	"impact",
}

// ValidTactic reports whether s is a known tactic name.
func ValidTactic(s string) bool {
	for _, t := range ValidTactics {
		if t == s {
			return true
		}
	}
	return false
}

// DocumentationURL returns the public documentation page for a technique.
func DocumentationURL(techniqueID string) string {
	return "https://stratus-red-team.cloud/attack-techniques/" + strings.ReplaceAll(techniqueID, ".", "/") + "/"
}
