// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/epics-base/epics-ci/internal/cictx"
	"github.com/epics-base/epics-ci/internal/config"
	"github.com/epics-base/epics-ci/internal/driver"
	"github.com/epics-base/epics-ci/pkg/deps"
	"github.com/epics-base/epics-ci/pkg/setup"
)

type (
	// App wires the CLI to its collaborators. Command handlers receive an
	// App and never reach for process globals directly.
	App struct {
		Config    config.Provider
		LookupEnv config.LookupEnvFunc
		Environ   []string
		WorkDir   string
		ConfigDir string
		VCS       deps.VCS
		Runner    driver.Runner
		stdout    io.Writer
		stderr    io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		// LookupEnv and Environ describe the process environment.
		LookupEnv config.LookupEnvFunc
		Environ   []string
		// WorkDir is the project checkout; defaults to the current directory.
		WorkDir string
		// ConfigDir overrides the user config directory.
		ConfigDir string
		// VCS defaults to the go-git backend.
		VCS deps.VCS
		// Runner defaults to running real processes.
		Runner driver.Runner
		Stdout io.Writer
		Stderr io.Writer
	}

	// rootFlagValues holds the persistent flags of the root command.
	rootFlagValues struct {
		verbose    bool
		configPath string
		addPaths   []string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.LookupEnv == nil {
		deps.LookupEnv = os.LookupEnv
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ()
	}
	if deps.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		deps.WorkDir = wd
	}

	return &App{
		Config:    deps.Config,
		LookupEnv: deps.LookupEnv,
		Environ:   deps.Environ,
		WorkDir:   deps.WorkDir,
		ConfigDir: deps.ConfigDir,
		VCS:       deps.VCS,
		Runner:    deps.Runner,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}, nil
}

// loadConfig loads the tool configuration; --verbose forces debug output.
func (a *App) loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions(flags))
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func (a *App) loadOptions(flags *rootFlagValues) config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: flags.configPath,
		ConfigDirPath:  a.ConfigDir,
		LookupEnv:      a.LookupEnv,
	}
}

// newLogger returns the leveled logger every component receives.
func (a *App) newLogger(cfg *config.Config) *log.Logger {
	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stdout, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}

// vcs returns the injected VCS or a go-git one. Verbose runs stream clone
// progress to stderr.
func (a *App) vcs(cfg *config.Config) deps.VCS {
	if a.VCS != nil {
		return a.VCS
	}
	opts := []deps.GitOption{deps.WithGitLookupEnv(setup.LookupEnvFunc(a.LookupEnv))}
	if cfg != nil && cfg.Verbose {
		opts = append(opts, deps.WithProgress(a.stderr))
	}
	return deps.NewGitVCS(opts...)
}

// newSession creates the resolution session for one invocation.
func (a *App) newSession(cfg *config.Config, logger *log.Logger) (*deps.Session, error) {
	return deps.NewSession(deps.Options{
		CacheDir:   cfg.CacheDir,
		SearchPath: cfg.SetupPath,
		WorkDir:    a.WorkDir,
		LookupEnv:  setup.LookupEnvFunc(a.LookupEnv),
		Logger:     logger,
		VCS:        a.vcs(cfg),
		Hooks: deps.NewHookRunner(
			deps.WithPatchTool(cfg.Patch),
			deps.WithHookOutput(a.stdout, a.stderr),
			deps.WithHookEnviron(a.Environ),
			deps.WithHookLogger(logger),
		),
		RootDependency: cfg.RootDependency,
		RootVarName:    cfg.RootVarName,
		RepoOwner:      cfg.RepoOwner,
		CompatPatch:    cfg.CompatPatchPath(),
	})
}

// newDriver loads the configuration and builds a Driver for the project.
func (a *App) newDriver(ctx context.Context, flags *rootFlagValues) (*driver.Driver, error) {
	cfg, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	logger := a.newLogger(cfg)
	session, err := a.newSession(cfg, logger)
	if err != nil {
		return nil, err
	}
	return driver.New(driver.Options{
		Session:  session,
		Context:  cictx.Detect(cictx.LookupEnvFunc(a.LookupEnv)),
		Config:   cfg,
		Runner:   a.Runner,
		Logger:   logger,
		Stdout:   a.stdout,
		Stderr:   a.stderr,
		Environ:  a.Environ,
		AddPaths: flags.addPaths,
	})
}
