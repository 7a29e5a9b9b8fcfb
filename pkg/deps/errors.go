// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"errors"
	"fmt"

	"github.com/epics-base/epics-ci/pkg/setup"
)

var (
	// ErrInvalidRecursion is the sentinel wrapped by InvalidRecursionError.
	ErrInvalidRecursion = errors.New("invalid recursion flag")
	// ErrInvalidDepth is the sentinel wrapped by InvalidDepthError.
	ErrInvalidDepth = errors.New("invalid clone depth")
	// ErrUnknownRef is the sentinel wrapped by UnknownRefError.
	ErrUnknownRef = errors.New("unknown ref")
	// ErrCloneFailed is returned when a clone or its verification fails.
	ErrCloneFailed = errors.New("clone failed")
	// ErrInvalidDependencyName is returned for an empty dependency name.
	ErrInvalidDependencyName = errors.New("invalid dependency name")
)

type (
	// InvalidRecursionError is returned when <DEP>_RECURSIVE is not one of
	// 0, no, 1, yes (case-insensitive).
	InvalidRecursionError struct {
		Dependency string
		Value      string
	}

	// InvalidDepthError is returned when <DEP>_DEPTH is not an integer >= -1.
	InvalidDepthError struct {
		Dependency string
		Value      string
	}

	// UnknownRefError is returned when the requested ref is neither a tag
	// nor a branch of the remote repository.
	UnknownRefError struct {
		Dependency string
		Ref        string
		URL        string
	}

	// CloneError wraps a failed clone or post-clone verification.
	CloneError struct {
		Dependency string
		Ref        string
		Path       string
		Err        error
	}
)

// Error implements the error interface.
func (e *InvalidRecursionError) Error() string {
	return fmt.Sprintf("invalid value for %s_RECURSIVE=%q (not 0/NO/1/YES)", e.Dependency, e.Value)
}

// Unwrap matches both ErrInvalidRecursion and setup.ErrConfiguration.
func (e *InvalidRecursionError) Unwrap() []error {
	return []error{ErrInvalidRecursion, setup.ErrConfiguration}
}

// Error implements the error interface.
func (e *InvalidDepthError) Error() string {
	return fmt.Sprintf("invalid value for %s_DEPTH=%q (expected -1, 0 or a positive integer)", e.Dependency, e.Value)
}

// Unwrap matches both ErrInvalidDepth and setup.ErrConfiguration.
func (e *InvalidDepthError) Unwrap() []error {
	return []error{ErrInvalidDepth, setup.ErrConfiguration}
}

// Error implements the error interface.
func (e *UnknownRefError) Error() string {
	return fmt.Sprintf("%s is neither a tag nor a branch name for %s (%s)", e.Ref, e.Dependency, e.URL)
}

// Unwrap matches both ErrUnknownRef and setup.ErrConfiguration.
func (e *UnknownRefError) Unwrap() []error {
	return []error{ErrUnknownRef, setup.ErrConfiguration}
}

// Error implements the error interface.
func (e *CloneError) Error() string {
	return fmt.Sprintf("cloning %s of dependency %s into %s: %v", e.Ref, e.Dependency, e.Path, e.Err)
}

// Unwrap matches ErrCloneFailed and the underlying cause.
func (e *CloneError) Unwrap() []error {
	return []error{ErrCloneFailed, e.Err}
}
