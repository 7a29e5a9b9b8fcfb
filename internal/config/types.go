// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	// DefaultParallel is the make job count when none is configured.
	DefaultParallel = 2
	// DefaultMake is the make executable name.
	DefaultMake = "make"
	// DefaultPatch is the patch executable name.
	DefaultPatch = "patch"
	// DefaultRootDependency names the dependency that is the platform base.
	DefaultRootDependency = "BASE"
	// DefaultRootVarName is the manifest variable of the root dependency.
	DefaultRootVarName = "EPICS_BASE"
	// DefaultRepoOwner is the repository owner used for module URLs.
	DefaultRepoOwner = "epics-modules"
	// DefaultCompatPatch is the patch adding MSI to 3.14 base checkouts.
	DefaultCompatPatch = "add-msi-to-314.patch"
)

// LookupEnvFunc matches os.LookupEnv.
type LookupEnvFunc func(string) (string, bool)

// Config holds the epics-ci tool settings.
type Config struct {
	// CacheDir is the root directory of dependency checkouts.
	CacheDir string `json:"cache_dir" mapstructure:"cache_dir"`
	// SetupPath is the search path for setup files.
	SetupPath string `json:"setup_path" mapstructure:"setup_path"`
	// Verbose enables debug logging and non-silent dependency builds.
	Verbose bool `json:"verbose" mapstructure:"verbose"`
	// Parallel is the make job count; zero or less disables -j.
	Parallel int `json:"parallel" mapstructure:"parallel"`
	// BuildTimeout bounds each make invocation; zero means no limit.
	BuildTimeout time.Duration `json:"build_timeout" mapstructure:"build_timeout"`
	// Make is the make executable.
	Make string `json:"make" mapstructure:"make"`
	// Patch is the patch executable used by patch hooks.
	Patch string `json:"patch" mapstructure:"patch"`
	// RootDependency names the platform base dependency.
	RootDependency string `json:"root_dependency" mapstructure:"root_dependency"`
	// RootVarName is the manifest variable of the root dependency.
	RootVarName string `json:"root_varname" mapstructure:"root_varname"`
	// RepoOwner is the default repository owner for module URLs.
	RepoOwner string `json:"repo_owner" mapstructure:"repo_owner"`
	// ScriptsDir holds the compatibility patch.
	ScriptsDir string `json:"scripts_dir" mapstructure:"scripts_dir"`
	// CompatPatch is the compatibility patch file name inside ScriptsDir.
	CompatPatch string `json:"compat_patch" mapstructure:"compat_patch"`
}

// DefaultConfig returns the default configuration for the running process.
func DefaultConfig() *Config {
	return DefaultConfigWith(os.LookupEnv)
}

// DefaultConfigWith returns the default configuration, reading the home
// directory through lookupEnv.
func DefaultConfigWith(lookupEnv LookupEnvFunc) *Config {
	return &Config{
		CacheDir:       DefaultCacheDirWith(lookupEnv),
		Parallel:       DefaultParallel,
		Make:           DefaultMake,
		Patch:          DefaultPatch,
		RootDependency: DefaultRootDependency,
		RootVarName:    DefaultRootVarName,
		RepoOwner:      DefaultRepoOwner,
		ScriptsDir:     defaultScriptsDir(),
		CompatPatch:    DefaultCompatPatch,
	}
}

// DefaultCacheDirWith returns $HOME/.cache, using HOMEDRIVE and HOMEPATH on
// Windows. Without a home directory it falls back to the working directory.
func DefaultCacheDirWith(lookupEnv LookupEnvFunc) string {
	var home string
	if runtime.GOOS == "windows" {
		drive, _ := lookupEnv("HOMEDRIVE")
		path, _ := lookupEnv("HOMEPATH")
		if drive != "" || path != "" {
			home = drive + path
		}
	} else {
		home, _ = lookupEnv("HOME")
	}
	if home == "" {
		if wd, err := os.Getwd(); err == nil {
			home = wd
		}
	}
	return filepath.Join(home, ".cache")
}

// CompatPatchPath returns the absolute path of the compatibility patch, or
// "" when none is configured.
func (c *Config) CompatPatchPath() string {
	if c.CompatPatch == "" {
		return ""
	}
	if filepath.IsAbs(c.CompatPatch) || c.ScriptsDir == "" {
		return c.CompatPatch
	}
	return filepath.Join(c.ScriptsDir, c.CompatPatch)
}

// resolvePaths makes a relative scripts directory, or a relative patch
// without one, absolute against the working directory. Hooks run inside
// cache entries and would otherwise resolve them there.
func (c *Config) resolvePaths() error {
	if c.ScriptsDir != "" && !filepath.IsAbs(c.ScriptsDir) {
		abs, err := filepath.Abs(c.ScriptsDir)
		if err != nil {
			return fmt.Errorf("failed to resolve scripts_dir: %w", err)
		}
		c.ScriptsDir = abs
	}
	if c.ScriptsDir == "" && c.CompatPatch != "" && !filepath.IsAbs(c.CompatPatch) {
		abs, err := filepath.Abs(c.CompatPatch)
		if err != nil {
			return fmt.Errorf("failed to resolve compat_patch: %w", err)
		}
		c.CompatPatch = abs
	}
	return nil
}

// Validate checks constraints the schema cannot see after environment
// overrides are applied.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir must not be empty")
	}
	if c.BuildTimeout < 0 {
		return fmt.Errorf("build_timeout must not be negative, got %s", c.BuildTimeout)
	}
	if c.Make == "" {
		return fmt.Errorf("make must not be empty")
	}
	if c.Patch == "" {
		return fmt.Errorf("patch must not be empty")
	}
	if c.RootDependency == "" {
		return fmt.Errorf("root_dependency must not be empty")
	}
	if c.RootVarName == "" {
		return fmt.Errorf("root_varname must not be empty")
	}
	return nil
}

func defaultScriptsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}
