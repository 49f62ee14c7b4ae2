package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// RunResult is the outcome of one subprocess. Err is set when the process
// could not be started or was killed; a non-zero exit alone only sets
// ExitCode.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// OK reports a clean zero exit.
func (r RunResult) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Runner executes a command in dir.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) RunResult
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) RunResult {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := RunResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		res.ExitCode = -1
		res.Err = ctx.Err()
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Err = err
	}
	return res
}
