// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog entry.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	SetupFileNotFoundId
	SearchPathEmptyId
	InvalidSettingId
	UnknownRefId
	CloneFailedId
	HookFailedId
	MakeFailedId
	BuildTimeoutId
)

// MarkdownMsg is catalog text rendered with glamour.
type MarkdownMsg string

// HttpLink is an external documentation link.
type HttpLink string

// Issue is a catalog entry explaining a known failure and how to recover.
type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	docLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the entry as terminal markdown using the named glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

const ciScriptsDocs HttpLink = "https://github.com/epics-base/ci-scripts#readme"

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Could not load the epics-ci configuration

The tool configuration file is CUE and is validated against a fixed schema.

## Things you can try
- Print a valid configuration to start from:
~~~
$ epics-ci config dump > config.cue
~~~
- Check the ` + "`EPICS_CI_*`" + ` environment variables for malformed values.`,
	}

	setupFileNotFoundIssue = &Issue{
		id: SetupFileNotFoundId,
		mdMsg: `
# Setup file not found

Setup files (` + "`<name>.set`" + `) are searched in every directory of the
setup search path, in order.

## Things you can try
- Check the spelling of the ` + "`include`" + ` line or of ` + "`SET`" + `.
- Add the directory holding the file to ` + "`SETUP_PATH`" + `.`,
		docLinks: []HttpLink{ciScriptsDocs},
	}

	searchPathEmptyIssue = &Issue{
		id: SearchPathEmptyId,
		mdMsg: `
# Setup search path is empty

No directory was configured to look for setup files.

## Things you can try
- Export ` + "`SETUP_PATH`" + ` with a colon or space separated list of directories:
~~~
$ export SETUP_PATH=".ci-local:.ci"
~~~`,
		docLinks: []HttpLink{ciScriptsDocs},
	}

	invalidSettingIssue = &Issue{
		id: InvalidSettingId,
		mdMsg: `
# Invalid dependency setting

A dependency option could not be parsed.

## Accepted values
- ` + "`<DEP>_RECURSIVE`" + `: YES, NO, 1 or 0
- ` + "`<DEP>_DEPTH`" + `: -1 (default depth), 0 (full history) or a positive commit count`,
		docLinks: []HttpLink{ciScriptsDocs},
	}

	unknownRefIssue = &Issue{
		id: UnknownRefId,
		mdMsg: `
# Tag or branch not found

The requested version of a dependency does not exist in its remote repository.

## Things you can try
- Check the version set in your setup file or in the environment.
- Check ` + "`<DEP>_REPOURL`" + ` and ` + "`<DEP>_REPOOWNER`" + ` point to the right repository.`,
	}

	cloneFailedIssue = &Issue{
		id: CloneFailedId,
		mdMsg: `
# Cloning a dependency failed

## Things you can try
- Retry the job; network failures are not retried by epics-ci.
- For private repositories export ` + "`GITHUB_TOKEN`" + `, ` + "`GITLAB_TOKEN`" + ` or ` + "`GIT_TOKEN`" + `.`,
	}

	hookFailedIssue = &Issue{
		id: HookFailedId,
		mdMsg: `
# A dependency hook failed

The hook set with ` + "`<DEP>_HOOK`" + ` ran inside the fresh checkout and failed.
The checkout is not marked as complete and will be fetched again next run.

## Things you can try
- Check the patch still applies to the requested version.
- Run the hook by hand inside the cache entry.`,
	}

	makeFailedIssue = &Issue{
		id: MakeFailedId,
		mdMsg: `
# Build failed

make exited with a non-zero status. epics-ci exits with the same status.

## Things you can try
- Re-run with ` + "`--verbose`" + ` or ` + "`VV=1`" + ` to see dependency build output.`,
	}

	buildTimeoutIssue = &Issue{
		id: BuildTimeoutId,
		mdMsg: `
# Build timed out

make did not finish within the configured build timeout and was terminated.

## Things you can try
- Raise ` + "`build_timeout`" + ` in the config file or ` + "`EPICS_CI_BUILD_TIMEOUT`" + `.
- Increase parallelism with ` + "`EPICS_CI_PARALLEL`" + `.`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		setupFileNotFoundIssue.Id(): setupFileNotFoundIssue,
		searchPathEmptyIssue.Id():   searchPathEmptyIssue,
		invalidSettingIssue.Id():    invalidSettingIssue,
		unknownRefIssue.Id():        unknownRefIssue,
		cloneFailedIssue.Id():       cloneFailedIssue,
		hookFailedIssue.Id():        hookFailedIssue,
		makeFailedIssue.Id():        makeFailedIssue,
		buildTimeoutIssue.Id():      buildTimeoutIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id) - int(b.id)
	})
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
