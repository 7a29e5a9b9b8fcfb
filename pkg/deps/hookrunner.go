// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// DefaultPatchTool is the program applying patch hooks.
const DefaultPatchTool = "patch"

type (
	// HookExecutor runs a post-fetch hook inside a checkout.
	HookExecutor interface {
		RunHook(ctx context.Context, hook Hook, dir string, writes *WriteLog) error
	}

	// HookRunner is the default HookExecutor. Patches go through an external
	// patch tool, archives are extracted in-process, scripts run in an
	// embedded POSIX shell interpreter and anything else is executed
	// directly.
	HookRunner struct {
		patchTool string
		stdout    io.Writer
		stderr    io.Writer
		environ   []string
		logger    *log.Logger
	}

	// HookOption configures a HookRunner.
	HookOption func(*HookRunner)

	// HookError reports a hook that failed.
	HookError struct {
		Hook Hook
		Dir  string
		// ExitCode is the exit status of the hook process, or -1.
		ExitCode int
		Err      error
	}
)

// WithPatchTool sets the patch program.
func WithPatchTool(tool string) HookOption {
	return func(h *HookRunner) { h.patchTool = tool }
}

// WithHookOutput sets where hook output goes.
func WithHookOutput(stdout, stderr io.Writer) HookOption {
	return func(h *HookRunner) {
		h.stdout = stdout
		h.stderr = stderr
	}
}

// WithHookEnviron sets the environment of hook processes.
func WithHookEnviron(environ []string) HookOption {
	return func(h *HookRunner) { h.environ = environ }
}

// WithHookLogger sets the logger.
func WithHookLogger(logger *log.Logger) HookOption {
	return func(h *HookRunner) { h.logger = logger }
}

// NewHookRunner creates a HookRunner.
func NewHookRunner(opts ...HookOption) *HookRunner {
	h := &HookRunner{
		patchTool: DefaultPatchTool,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		environ:   os.Environ(),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Error implements the error interface.
func (e *HookError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s hook %s in %s exited with status %d", e.Hook.Kind(), e.Hook.Path(), e.Dir, e.ExitCode)
	}
	return fmt.Sprintf("%s hook %s in %s: %v", e.Hook.Kind(), e.Hook.Path(), e.Dir, e.Err)
}

// Unwrap returns the underlying error.
func (e *HookError) Unwrap() error { return e.Err }

// HookPath resolves a hook file relative to the checkout in dir.
func HookPath(hook Hook, dir string) string {
	if filepath.IsAbs(hook.Path()) {
		return hook.Path()
	}
	return filepath.Join(dir, hook.Path())
}

// RunHook runs hook with dir as working directory.
func (h *HookRunner) RunHook(ctx context.Context, hook Hook, dir string, writes *WriteLog) error {
	file := HookPath(hook, dir)
	h.logger.Debugf("Running %s hook %s in %s", hook.Kind(), file, dir)

	var err error
	switch hk := hook.(type) {
	case PatchHook:
		err = h.runPatch(ctx, file, dir)
	case ArchiveHook:
		err = extractArchive(file, hk.Format, dir, writes)
	case ScriptHook:
		err = h.runScript(ctx, file, dir)
	case ExecHook:
		err = h.runExec(ctx, file, dir)
	default:
		err = fmt.Errorf("unknown hook kind %q", hook.Kind())
	}
	if err == nil {
		return nil
	}

	code := -1
	var exitErr *exec.ExitError
	var status interp.ExitStatus
	switch {
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
	case errors.As(err, &status):
		code = int(status)
	}
	return &HookError{Hook: hook, Dir: dir, ExitCode: code, Err: err}
}

func (h *HookRunner) runPatch(ctx context.Context, file, dir string) error {
	cmd := exec.CommandContext(ctx, h.patchTool, "-p1", "-i", file)
	cmd.Dir = dir
	cmd.Env = h.environ
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr
	return cmd.Run()
}

func (h *HookRunner) runExec(ctx context.Context, file, dir string) error {
	cmd := exec.CommandContext(ctx, file)
	cmd.Dir = dir
	cmd.Env = h.environ
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr
	return cmd.Run()
}

func (h *HookRunner) runScript(ctx context.Context, file, dir string) (err error) {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	prog, err := syntax.NewParser().Parse(f, file)
	if err != nil {
		return fmt.Errorf("failed to parse script: %w", err)
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(h.environ...)),
		interp.StdIO(nil, h.stdout, h.stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}
	return runner.Run(ctx, prog)
}
