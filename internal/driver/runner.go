// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// DefaultWaitDelay is how long a terminated child may keep its output pipes
// open before it is killed.
const DefaultWaitDelay = 10 * time.Second

type (
	// Command is one external process invocation.
	Command struct {
		Name string
		Args []string
		// Dir is the working directory; empty means the current one.
		Dir string
		// Env is the complete environment; nil inherits the process one.
		Env    []string
		Stdout io.Writer
		Stderr io.Writer
	}

	// Runner starts external processes.
	Runner interface {
		// Run runs cmd to completion.
		Run(ctx context.Context, cmd Command) error
		// Output runs cmd and returns its standard output.
		Output(ctx context.Context, cmd Command) (string, error)
	}

	// ExecRunner runs commands with os/exec. When ctx is done the child
	// receives a termination signal, then a kill after the wait delay.
	ExecRunner struct {
		waitDelay time.Duration
	}

	// CommandError reports a failed external command.
	CommandError struct {
		Command string
		// ExitCode is the process exit status, or -1 when it did not run
		// to completion.
		ExitCode int
		Err      error
	}
)

// NewExecRunner creates an ExecRunner with DefaultWaitDelay.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{waitDelay: DefaultWaitDelay}
}

// String renders the command line.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error { return e.Err }

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := r.command(ctx, c)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return commandError(c, cmd.Run())
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, c Command) (string, error) {
	var stdout bytes.Buffer
	cmd := r.command(ctx, c)
	cmd.Stdout = &stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		return "", commandError(c, err)
	}
	return stdout.String(), nil
}

func (r *ExecRunner) command(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = r.waitDelay
	return cmd
}

// commandError converts an exec error into a CommandError carrying the exit
// status.
func commandError(c Command, err error) error {
	if err == nil {
		return nil
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &CommandError{Command: c.String(), ExitCode: code, Err: err}
}
