// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/epics-base/epics-ci/internal/config"
)

// newConfigCommand creates the `epics-ci config` command tree.
func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect epics-ci configuration",
		Long: `Inspect epics-ci configuration.

Configuration is read from an optional CUE file, stored in:
  - Linux: ~/.config/epics-ci/config.cue
  - macOS: ~/Library/Application Support/epics-ci/config.cue
  - Windows: %APPDATA%\epics-ci\config.cue

Environment variables override the file: CACHEDIR, SETUP_PATH, VV,
EPICS_CI_PARALLEL, EPICS_CI_BUILD_TIMEOUT, EPICS_CI_MAKE and EPICS_CI_PATCH.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, source, err := config.Resolve(cmd.Context(), app.loadOptions(flags))
			if err != nil {
				return err
			}
			if flags.verbose {
				cfg.Verbose = true
			}
			showConfig(cmd.OutOrStdout(), cfg, source)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := app.ConfigDir
			if dir == "" {
				var err error
				if dir, err = config.ConfigDir(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", filepath.Join(dir, "config.cue"))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, source string) {
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if source != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	row := func(key string, value any) {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render(key), SuccessStyle.Render(fmt.Sprint(value)))
	}
	row("cache_dir", cfg.CacheDir)
	if cfg.SetupPath != "" {
		row("setup_path", cfg.SetupPath)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("setup_path"), SubtitleStyle.Render("(not set)"))
	}
	row("verbose", cfg.Verbose)
	row("parallel", cfg.Parallel)
	if cfg.BuildTimeout > 0 {
		row("build_timeout", cfg.BuildTimeout)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("build_timeout"), SubtitleStyle.Render("(none)"))
	}
	row("make", cfg.Make)
	row("patch", cfg.Patch)
	row("root_dependency", cfg.RootDependency)
	row("root_varname", cfg.RootVarName)
	row("repo_owner", cfg.RepoOwner)
	row("compat_patch", cfg.CompatPatchPath())
}
