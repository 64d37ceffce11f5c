package stratus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CLI is the production Client: it shells out to the stratus and aws
// binaries.
type CLI struct {
	runner     CommandRunner
	stratusBin string
	awsBin     string
}

// NewCLI creates a client for the given binaries. Empty names fall back to
// "stratus" and "aws" on PATH.
func NewCLI(stratusBin, awsBin string) *CLI {
	return NewCLIWithRunner(ExecRunner{}, stratusBin, awsBin)
}

// NewCLIWithRunner is NewCLI with an explicit command runner, for tests.
func NewCLIWithRunner(runner CommandRunner, stratusBin, awsBin string) *CLI {
	if stratusBin == "" {
		stratusBin = "stratus"
	}
	if awsBin == "" {
		awsBin = "aws"
	}
	return &CLI{runner: runner, stratusBin: stratusBin, awsBin: awsBin}
}

// run executes cmd and converts non-zero completion into a ToolError.
func (c *CLI) run(ctx context.Context, cmd Command) (Result, error) {
	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &ToolError{Cmd: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

// regionEnv binds the target region into a child invocation's environment.
func regionEnv(region string) map[string]string {
	return map[string]string{
		"AWS_REGION":         region,
		"AWS_DEFAULT_REGION": region,
	}
}

func (c *CLI) Identity(ctx context.Context) (Identity, error) {
	res, err := c.run(ctx, Command{
		Name: c.awsBin,
		Args: []string{"sts", "get-caller-identity", "--output", "json"},
	})
	if err != nil {
		return Identity{}, err
	}
	var payload struct {
		Account string `json:"Account"`
		Arn     string `json:"Arn"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &payload); err != nil {
		return Identity{}, fmt.Errorf("parsing caller identity: %w", err)
	}
	if payload.Account == "" {
		return Identity{}, fmt.Errorf("caller identity has no account")
	}
	return Identity{Account: payload.Account, ARN: payload.Arn}, nil
}

func (c *CLI) ListTechniques(ctx context.Context, tactic string) ([]Technique, error) {
	args := []string{"list", "--platform", "aws"}
	if tactic != "" {
		args = append(args, "--mitre-attack-tactic", tactic)
	}
	res, err := c.run(ctx, Command{Name: c.stratusBin, Args: args})
	if err != nil {
		return nil, err
	}
	return parseTechniques(res.Stdout), nil
}

// parseTechniques extracts catalog entries from the tool's tabular output.
// Technique IDs carry the platform prefix, which also skips the header and
// separator lines.
func parseTechniques(out string) []Technique {
	var techniques []Technique
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "aws.") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		id := fields[0]
		name := strings.TrimSpace(strings.TrimPrefix(line, id))
		techniques = append(techniques, Technique{ID: id, Name: name})
	}
	return techniques
}

func (c *CLI) Warmup(ctx context.Context, techniqueID, region string) error {
	_, err := c.run(ctx, Command{
		Name: c.stratusBin,
		Args: []string{"warmup", techniqueID},
		Env:  regionEnv(region),
	})
	return err
}

func (c *CLI) Detonate(ctx context.Context, techniqueID string, cleanup bool, region string) error {
	args := []string{"detonate", techniqueID}
	if cleanup {
		args = append(args, "--cleanup")
	}
	_, err := c.run(ctx, Command{
		Name: c.stratusBin,
		Args: args,
		Env:  regionEnv(region),
	})
	return err
}

func (c *CLI) Revert(ctx context.Context, techniqueID, region string) error {
	_, err := c.run(ctx, Command{
		Name: c.stratusBin,
		Args: []string{"revert", techniqueID},
		Env:  regionEnv(region),
	})
	return err
}

func (c *CLI) Cleanup(ctx context.Context, techniqueID, region string) error {
	_, err := c.run(ctx, Command{
		Name: c.stratusBin,
		Args: []string{"cleanup", techniqueID},
		Env:  regionEnv(region),
	})
	return err
}

// Status returns the tool's status output. The tool exiting non-zero is not
// an error here; whatever it printed is the status.
func (c *CLI) Status(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, Command{Name: c.stratusBin, Args: []string{"status"}})
	if err != nil {
		return "", err
	}
	return res.Stdout + res.Stderr, nil
}
