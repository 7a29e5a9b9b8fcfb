// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/epics-base/epics-ci/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "epics-ci"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// envBinding maps an environment variable onto a config key.
type envBinding struct {
	key string
	env string
}

// envBindings lists the environment variables that override config values,
// in the order they are applied.
var envBindings = []envBinding{
	{key: "cache_dir", env: "CACHEDIR"},
	{key: "setup_path", env: "SETUP_PATH"},
	{key: "verbose", env: "VV"},
	{key: "parallel", env: "EPICS_CI_PARALLEL"},
	{key: "build_timeout", env: "EPICS_CI_BUILD_TIMEOUT"},
	{key: "make", env: "EPICS_CI_MAKE"},
	{key: "patch", env: "EPICS_CI_PATCH"},
}

// EnvVar returns the environment variable bound to key, or "".
func EnvVar(key string) string {
	for _, b := range envBindings {
		if b.key == key {
			return b.env
		}
	}
	return ""
}

// ConfigDir returns the epics-ci configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	lookupEnv := opts.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	v := viper.New()

	defaults := DefaultConfigWith(lookupEnv)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("setup_path", defaults.SetupPath)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("parallel", defaults.Parallel)
	v.SetDefault("build_timeout", defaults.BuildTimeout)
	v.SetDefault("make", defaults.Make)
	v.SetDefault("patch", defaults.Patch)
	v.SetDefault("root_dependency", defaults.RootDependency)
	v.SetDefault("root_varname", defaults.RootVarName)
	v.SetDefault("repo_owner", defaults.RepoOwner)
	v.SetDefault("scripts_dir", defaults.ScriptsDir)
	v.SetDefault("compat_patch", defaults.CompatPatch)

	resolvedPath := ""

	// An explicit --config path is used exclusively and must exist.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'epics-ci config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", invalidConfigError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", invalidConfigError(cuePath, err)
			}
			resolvedPath = cuePath
		}
	}

	applyEnv(v, lookupEnv)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("parse configuration").
			WithSuggestion("Check the EPICS_CI_* environment variables for malformed numbers or durations").
			Wrap(err).
			BuildError()
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, "", err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// applyEnv overrides config keys from their bound environment variables.
// Empty variables are ignored. VV enables verbose output for any value but
// "0", "no" or "false".
func applyEnv(v *viper.Viper, lookupEnv LookupEnvFunc) {
	for _, b := range envBindings {
		val, ok := lookupEnv(b.env)
		if !ok || val == "" {
			continue
		}
		if b.key == "verbose" {
			switch strings.ToLower(val) {
			case "0", "no", "false":
				v.Set(b.key, false)
			default:
				v.Set(b.key, true)
			}
			continue
		}
		v.Set(b.key, val)
	}
}

func invalidConfigError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("Run 'epics-ci config dump' for a valid starting point").
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Fields are optional, so validation uses Concrete(false) and the result is
// decoded to a map rather than the Config struct.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// epics-ci configuration file\n\n")
	fmt.Fprintf(&sb, "cache_dir: %q\n", cfg.CacheDir)
	if cfg.SetupPath != "" {
		fmt.Fprintf(&sb, "setup_path: %q\n", cfg.SetupPath)
	}
	fmt.Fprintf(&sb, "verbose: %v\n", cfg.Verbose)
	fmt.Fprintf(&sb, "parallel: %d\n", cfg.Parallel)
	fmt.Fprintf(&sb, "build_timeout: %q\n", cfg.BuildTimeout.String())
	fmt.Fprintf(&sb, "make: %q\n", cfg.Make)
	fmt.Fprintf(&sb, "patch: %q\n", cfg.Patch)

	sb.WriteString("\n// Dependency layout\n")
	fmt.Fprintf(&sb, "root_dependency: %q\n", cfg.RootDependency)
	fmt.Fprintf(&sb, "root_varname: %q\n", cfg.RootVarName)
	fmt.Fprintf(&sb, "repo_owner: %q\n", cfg.RepoOwner)
	if cfg.ScriptsDir != "" {
		fmt.Fprintf(&sb, "scripts_dir: %q\n", cfg.ScriptsDir)
	}
	fmt.Fprintf(&sb, "compat_patch: %q\n", cfg.CompatPatch)

	return sb.String()
}
