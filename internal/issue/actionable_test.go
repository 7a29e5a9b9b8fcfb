// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load setup file"},
			expected: "failed to load setup file",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "load setup file",
				Resource:  "modules.set",
			},
			expected: "failed to load setup file: modules.set",
		},
		{
			name: "operation with cause",
			err: &ActionableError{
				Operation: "run make",
				Cause:     errors.New("exit status 2"),
			},
			expected: "failed to run make: exit status 2",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "fetch dependency",
				Resource:  "ASYN",
				Cause:     errors.New("tag R4-99 not found"),
			},
			expected: "failed to fetch dependency: ASYN: tag R4-99 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	t.Parallel()

	cause := errors.New("specific error")
	wrapped := &ActionableError{Operation: "test", Cause: cause}

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if (&ActionableError{Operation: "test"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name: "suggestions are bulleted",
			err: &ActionableError{
				Operation:   "load configuration",
				Resource:    "config.cue",
				Suggestions: []string{"Run 'epics-ci config dump'", "Check file permissions"},
			},
			contains: []string{
				"failed to load configuration: config.cue",
				"• Run 'epics-ci config dump'",
				"• Check file permissions",
			},
		},
		{
			name: "no error chain in non-verbose",
			err: &ActionableError{
				Operation: "parse configuration",
				Cause:     errors.New("syntax error"),
			},
			contains: []string{"failed to parse configuration: syntax error"},
			excludes: []string{"Error chain:"},
		},
		{
			name: "nested error chain verbose",
			err: &ActionableError{
				Operation: "prepare",
				Cause: &ActionableError{
					Operation: "clone ASYN",
					Cause:     errors.New("connection reset"),
				},
			},
			verbose: true,
			contains: []string{
				"Error chain:",
				"1. failed to clone ASYN: connection reset",
				"2. connection reset",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.err.Format(tt.verbose)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Format() missing %q\ngot:\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Format() should not contain %q\ngot:\n%s", s, got)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("some/path").Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without operation should return nil")
	}

	err := NewErrorContext().
		WithOperation("load configuration").
		WithResource("/etc/epics-ci/config.cue").
		WithSuggestion("Check syntax").
		WithSuggestions("Verify permissions", "Run config dump").
		WithIssue(ConfigLoadFailedId).
		Wrap(errors.New("parse error")).
		Build()

	if err.Operation != "load configuration" || err.Resource != "/etc/epics-ci/config.cue" {
		t.Errorf("unexpected operation/resource: %q %q", err.Operation, err.Resource)
	}
	if len(err.Suggestions) != 3 {
		t.Errorf("Suggestions count = %d, want 3", len(err.Suggestions))
	}
	if err.Issue != ConfigLoadFailedId {
		t.Errorf("Issue = %d, want %d", err.Issue, ConfigLoadFailedId)
	}
	if err.Cause == nil || err.Cause.Error() != "parse error" {
		t.Errorf("Cause = %v", err.Cause)
	}

	var ae *ActionableError
	if !errors.As(NewErrorContext().WithOperation("x").BuildError(), &ae) {
		t.Error("BuildError() should return *ActionableError")
	}
}

func TestErrorContext_Reuse(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().
		WithOperation("apply hook").
		WithSuggestion("Check the patch")

	err1 := ctx.Wrap(errors.New("error 1")).Build()
	ctx.WithSuggestion("Another")
	err2 := ctx.Wrap(errors.New("error 2")).Build()

	if err1.Cause.Error() == err2.Cause.Error() {
		t.Error("reused context should allow different causes")
	}
	if len(err1.Suggestions) != 1 {
		t.Errorf("earlier build should not see later suggestions, got %v", err1.Suggestions)
	}
}

func TestWrapWithContext(t *testing.T) {
	t.Parallel()

	cause := errors.New("original error")
	err := WrapWithContext(cause, "write manifest", "/cache/RELEASE.local")
	if err.Operation != "write manifest" || err.Resource != "/cache/RELEASE.local" {
		t.Errorf("unexpected context: %+v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable")
	}
	if WrapWithContext(nil, "x", "y") != nil {
		t.Error("WrapWithContext(nil) should return nil")
	}
}

func TestIssueOf(t *testing.T) {
	t.Parallel()

	inner := NewErrorContext().WithOperation("clone").WithIssue(CloneFailedId).BuildError()
	outer := NewErrorContext().WithOperation("prepare").Wrap(inner).BuildError()

	tests := []struct {
		name string
		err  error
		want Id
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("x"), 0},
		{"direct", inner, CloneFailedId},
		{"found through outer actionable", outer, CloneFailedId},
		{"found through fmt wrap", fmt.Errorf("ctx: %w", outer), CloneFailedId},
		{"outer id wins", NewErrorContext().WithOperation("p").WithIssue(MakeFailedId).Wrap(inner).BuildError(), MakeFailedId},
		{"no id anywhere", NewErrorContext().WithOperation("p").Wrap(errors.New("x")).BuildError(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IssueOf(tt.err); got != tt.want {
				t.Errorf("IssueOf() = %d, want %d", got, tt.want)
			}
		})
	}
}
