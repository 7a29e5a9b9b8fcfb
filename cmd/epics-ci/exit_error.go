// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/epics-base/epics-ci/internal/driver"
	"github.com/epics-base/epics-ci/pkg/deps"
)

// ExitError carries the exit code of a failed external tool so the process
// can exit with it.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeOf returns the process exit code for err: the code of an
// ExitError, the exit status of a failed make or hook, or 1.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	var cmdErr *driver.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	var hookErr *deps.HookError
	if errors.As(err, &hookErr) && hookErr.ExitCode > 0 {
		return hookErr.ExitCode
	}
	return 1
}
