// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

func newPrepareCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Fetch, configure and build all dependencies",
		Long: `Load the setup files, check out every dependency into the cache
(reusing up-to-date entries), write RELEASE.local into the project, configure
the base build system and build every dependency that was fetched or follows
one that was.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := app.newDriver(cmd.Context(), flags)
			if err != nil {
				return err
			}
			return d.Prepare(cmd.Context())
		},
	}
}

func newBuildCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "build [-- makeargs...]",
		Short: "Build the main module",
		Long: `Run make in the project. Arguments are passed to make after the
EXTRA, EXTRA1 ... EXTRA5 variables; separate them with "--" when they start
with a dash.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.newDriver(cmd.Context(), flags)
			if err != nil {
				return err
			}
			return d.Build(cmd.Context(), args)
		},
	}
}

func newTestCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the main module tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := app.newDriver(cmd.Context(), flags)
			if err != nil {
				return err
			}
			return d.Test(cmd.Context())
		},
	}
}

func newTestResultsCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "test-results",
		Short: "Sum up the main module test results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := app.newDriver(cmd.Context(), flags)
			if err != nil {
				return err
			}
			return d.TestResults(cmd.Context())
		},
	}
}

func newExecCommand(app *App, flags *rootFlagValues) *cobra.Command {
	execCmd := &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Run a command in the build environment",
		Long: `Run a command with EPICS_HOST_ARCH, TOP, MAKE and the extended PATH
set up as for a build. The command runs directly, not through a shell.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.newDriver(cmd.Context(), flags)
			if err != nil {
				return err
			}
			return d.Exec(cmd.Context(), args)
		},
	}
	// flags after the command name belong to the command
	execCmd.Flags().SetInterspersed(false)
	return execCmd
}
