// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// newRootCommand builds the command tree bound to app.
func newRootCommand(app *App, flags *rootFlagValues) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "epics-ci",
		Short: "Fetch, cache and build EPICS module dependencies on CI",
		Long: TitleStyle.Render("epics-ci") + SubtitleStyle.Render(" - Fetch, cache and build EPICS module dependencies on CI") + `

epics-ci reads layered setup files, checks out every dependency at its
declared tag or branch into a persistent cache, records the locations in
RELEASE.local and drives make for the dependencies and the project.

` + SubtitleStyle.Render("Typical CI job:") + `
  epics-ci prepare          Fetch and build dependencies
  epics-ci build            Build the project
  epics-ci test             Run the tests
  epics-ci test-results     Sum up test results`,
	}

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is <user config dir>/epics-ci/config.cue)")
	rootCmd.PersistentFlags().StringArrayVar(&flags.addPaths, "add-path", nil,
		"append a directory to PATH for external commands; {NAME} expands to $NAME (repeatable)")

	rootCmd.AddCommand(
		newPrepareCommand(app, flags),
		newBuildCommand(app, flags),
		newTestCommand(app, flags),
		newTestResultsCommand(app, flags),
		newExecCommand(app, flags),
		newSetupCommand(app, flags),
		newManifestCommand(app, flags),
		newCacheCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// Run executes the command line args and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	flags := &rootFlagValues{}
	rootCmd := newRootCommand(a, flags)
	rootCmd.SetArgs(args)

	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler(&flags.verbose)),
	)
	return exitCodeOf(err)
}

// Execute runs epics-ci with the process arguments and exits. It is called
// by main.main.
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		os.Exit(1)
	}
	os.Exit(app.Run(context.Background(), os.Args[1:]))
}
