// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidGitCommit is the sentinel error wrapped by InvalidGitCommitError.
var ErrInvalidGitCommit = errors.New("invalid git commit")

var gitCommitPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

const (
	// RefBranch is a branch (refs/heads/...).
	RefBranch RefKind = iota
	// RefTag is a tag (refs/tags/...).
	RefTag
)

type (
	// GitCommit is a 40-character lowercase hexadecimal commit SHA.
	GitCommit string

	// InvalidGitCommitError is returned when a GitCommit value does not match
	// the expected 40-character lowercase hex format.
	InvalidGitCommitError struct {
		Value GitCommit
	}

	// RefKind distinguishes branches from tags.
	RefKind int

	// RemoteRef is a ref found on a remote repository.
	RemoteRef struct {
		// Name is the full reference name, e.g. "refs/tags/R7.0.8".
		Name string
		// Short is the name as requested, e.g. "R7.0.8".
		Short string
		// Kind tells whether Name is a branch or a tag.
		Kind RefKind
	}

	// CommitInfo describes the head commit of a checkout.
	CommitInfo struct {
		Hash    GitCommit
		Subject string
	}
)

// Error implements the error interface.
func (e *InvalidGitCommitError) Error() string {
	return fmt.Sprintf("invalid git commit %q (must be a 40-character lowercase hex SHA)", e.Value)
}

// Unwrap returns ErrInvalidGitCommit so callers can use errors.Is for programmatic detection.
func (e *InvalidGitCommitError) Unwrap() error { return ErrInvalidGitCommit }

// Validate returns nil if the GitCommit is a valid 40-character lowercase hex SHA.
func (c GitCommit) Validate() error {
	if !gitCommitPattern.MatchString(string(c)) {
		return &InvalidGitCommitError{Value: c}
	}
	return nil
}

// Short returns the abbreviated 7-character form.
func (c GitCommit) Short() string {
	if len(c) > 7 {
		return string(c[:7])
	}
	return string(c)
}

// String returns the string representation of the GitCommit.
func (c GitCommit) String() string { return string(c) }

// String returns "branch" or "tag".
func (k RefKind) String() string {
	if k == RefTag {
		return "tag"
	}
	return "branch"
}

// OneLine formats the commit like "git log --oneline".
func (c CommitInfo) OneLine() string {
	if c.Subject == "" {
		return c.Hash.Short()
	}
	return c.Hash.Short() + " " + c.Subject
}
