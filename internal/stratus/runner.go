package stratus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command is one external tool invocation. Env entries are overlaid on the
// parent environment of the child process.
type Command struct {
	Name string
	Args []string
	Env  map[string]string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result captures a completed invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner executes external commands. The production implementation
// forks real processes; tests substitute a fake.
type CommandRunner interface {
	// Run executes cmd to completion. A non-zero exit is reported through
	// Result.ExitCode, not the error; the error is reserved for failures
	// to run the command at all.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands via os/exec, capturing both output streams. No
// timeout is imposed here: a hang in the external tool hangs the run.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Env = os.Environ()
	for k, v := range cmd.Env {
		c.Env = append(c.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("running %s: %w", cmd.Name, err)
	}
	return res, nil
}

// ToolError reports a non-zero completion of an external tool, with the
// tool's stderr preserved for the run record.
type ToolError struct {
	Cmd      string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("command failed (exit %d): %s", e.ExitCode, e.Cmd)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\nstderr: " + s
	}
	return msg
}
