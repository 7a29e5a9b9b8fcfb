// SPDX-License-Identifier: MPL-2.0

package setup

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is the sentinel for static misconfiguration that a
	// retry cannot fix. Every configuration error in this module wraps it.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmptySearchPath is returned when the setup search path is unset or empty.
	ErrEmptySearchPath = errors.New("setup search path is empty")

	// ErrSetupFileNotFound is returned when no search directory holds the requested file.
	ErrSetupFileNotFound = errors.New("setup file not found")

	// ErrMalformedLine is returned for a line that is neither a comment,
	// an include directive nor a KEY=VALUE assignment.
	ErrMalformedLine = errors.New("malformed setup line")
)

// ConfigurationError describes a misconfiguration of the setup files or
// their search path.
type ConfigurationError struct {
	// Name is the setup file name (without extension) being loaded.
	Name string
	// File is the resolved file path, when one was found.
	File string
	// Line is the 1-based line number for malformed content, or 0.
	Line int
	// SearchPath is the list of directories that were searched.
	SearchPath []string
	// Err is one of the Err* sentinels of this package.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrEmptySearchPath):
		return fmt.Sprintf("search path for setup files (%s) is empty", SearchPathEnv)
	case errors.Is(e.Err, ErrSetupFileNotFound):
		return fmt.Sprintf("setup file %s%s does not exist in %s search path (%s)",
			e.Name, FileExt, SearchPathEnv, strings.Join(e.SearchPath, " "))
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	default:
		return fmt.Sprintf("setup file %s: %v", e.Name, e.Err)
	}
}

// Unwrap exposes both the specific sentinel and ErrConfiguration.
func (e *ConfigurationError) Unwrap() []error {
	return []error{e.Err, ErrConfiguration}
}
