// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/fang"

	"github.com/epics-base/epics-ci/internal/driver"
	"github.com/epics-base/epics-ci/internal/issue"
	"github.com/epics-base/epics-ci/pkg/deps"
	"github.com/epics-base/epics-ci/pkg/setup"
)

// issueStyle selects the glamour style; "auto" degrades to plain text when
// stdout is not a terminal.
const issueStyle = "auto"

// classifyError maps a failure to the catalog entry explaining it, or zero
// when none applies.
func classifyError(err error) issue.Id {
	if id := issue.IssueOf(err); id != 0 {
		return id
	}

	var (
		hookErr *deps.HookError
		cmdErr  *driver.CommandError
	)
	switch {
	case errors.Is(err, setup.ErrEmptySearchPath):
		return issue.SearchPathEmptyId
	case errors.Is(err, setup.ErrSetupFileNotFound):
		return issue.SetupFileNotFoundId
	case errors.Is(err, deps.ErrUnknownRef):
		return issue.UnknownRefId
	case errors.Is(err, deps.ErrCloneFailed):
		return issue.CloneFailedId
	case errors.As(err, &hookErr):
		return issue.HookFailedId
	case errors.Is(err, driver.ErrBuildTimeout):
		return issue.BuildTimeoutId
	case errors.Is(err, setup.ErrConfiguration):
		return issue.InvalidSettingId
	case errors.As(err, &cmdErr):
		return issue.MakeFailedId
	}
	return 0
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// carry suggestions; verbose mode adds the error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// errorHandler prints the error and, when the failure is a known one, the
// catalog entry explaining how to recover.
func errorHandler(verbose *bool) fang.ErrorHandler {
	return func(w io.Writer, _ fang.Styles, err error) {
		fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, *verbose))
		renderIssue(w, classifyError(err))
	}
}

func renderIssue(w io.Writer, id issue.Id) {
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, err := entry.Render(issueStyle)
	if err != nil {
		fmt.Fprintf(w, "%s failed to render help: %v\n", WarningStyle.Render("Warning:"), err)
		return
	}
	fmt.Fprint(w, rendered)
}
