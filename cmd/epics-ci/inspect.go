// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/epics-base/epics-ci/pkg/deps"
)

func newSetupCommand(app *App, flags *rootFlagValues) *cobra.Command {
	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Inspect setup files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	setupCmd.AddCommand(&cobra.Command{
		Use:   "show [name...]",
		Short: "Load setup files and print the resulting settings",
		Long: `Load the named setup files (default: $SET, then "defaults"), complete
the settings of every module and print them sorted by name. Nothing is
fetched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			session, err := app.newSession(cfg, app.newLogger(cfg))
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				if set, ok := app.LookupEnv("SET"); ok && set != "" {
					names = append(names, set)
				}
				names = append(names, "defaults")
			}
			for _, name := range names {
				if err := session.LoadSetup(name); err != nil {
					return err
				}
			}
			modules := session.Modules()
			for _, mod := range modules {
				if _, err := session.Resolve(mod); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			store := session.Store()
			for _, key := range store.Keys() {
				fmt.Fprintf(out, "%s=%s\n", KeyStyle.Render(key), store.Value(key))
			}
			fmt.Fprintf(out, "\n%s %v\n", TitleStyle.Render("Modules:"), modules)
			return nil
		},
	})
	return setupCmd
}

func newManifestCommand(app *App, flags *rootFlagValues) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect the dependency location manifest (RELEASE.local)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	manifestCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print RELEASE.local from the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			session, err := app.newSession(cfg, app.newLogger(cfg))
			if err != nil {
				return err
			}

			path := session.Manifest().Path()
			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(out, "%s %s\n", path, SubtitleStyle.Render("(not written yet, run 'epics-ci prepare')"))
				return nil
			}
			entries, err := session.Manifest().Entries()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, TitleStyle.Render("# "+path))
			for _, e := range entries {
				fmt.Fprintf(out, "%s=%s\n", KeyStyle.Render(e.Name), e.Value)
			}
			return nil
		},
	})
	return manifestCmd
}

func newCacheCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the dependency cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list [glob]",
		Short: "List cache entries and whether they are up to date",
		Long: `List the checkouts in the cache with the state of their marker:
up-to-date (marker matches the head commit), stale, or never (no marker).
The optional glob filters entry names, e.g. "asyn-*" or "{base,asyn}-*".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			var pattern string
			if len(args) == 1 {
				pattern = args[0]
			}
			entries, err := deps.ListEntries(cmd.Context(), app.vcs(cfg), cfg.CacheDir, pattern)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "%s %s\n", cfg.CacheDir, SubtitleStyle.Render("(no matching cache entries)"))
				return nil
			}
			fmt.Fprintln(out, renderCacheTable(entries))
			return nil
		},
	})
	return cacheCmd
}

func renderCacheTable(entries []deps.CacheEntry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers("ENTRY", "STATUS", "HEAD").
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Inherit(KeyStyle).Bold(true)
			}
			if col == 1 {
				switch entries[row].Status.String() {
				case "up-to-date":
					return style.Inherit(SuccessStyle)
				default:
					return style.Inherit(WarningStyle)
				}
			}
			return style
		})
	for _, e := range entries {
		t.Row(e.Name, e.Status.String(), e.Status.Head.OneLine())
	}
	return t.Render()
}
