// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBuildTimeout is the sentinel error wrapped by TimeoutError.
	ErrBuildTimeout = errors.New("build timed out")
	// ErrNotPrepared is returned when the manifest has no root dependency
	// location, meaning prepare has not run.
	ErrNotPrepared = errors.New("dependencies are not prepared")
)

// TimeoutError is returned when make outlives the build timeout.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: terminated after build timeout of %s", e.Command, e.Timeout)
}

// Unwrap returns ErrBuildTimeout so callers can use errors.Is for programmatic detection.
func (e *TimeoutError) Unwrap() error { return ErrBuildTimeout }
