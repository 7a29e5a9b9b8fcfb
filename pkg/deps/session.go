// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"cmp"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/epics-base/epics-ci/pkg/setup"
)

const (
	// DefaultRootDependency is the dependency every other module builds on.
	DefaultRootDependency = "BASE"
	// DefaultRootVarName is the manifest variable of the root dependency.
	DefaultRootVarName = "EPICS_BASE"
	// DefaultRepoOwner is the fallback for the global REPOOWNER setting.
	DefaultRepoOwner = "epics-modules"
	// DefaultRef is checked out when a dependency declares no ref.
	DefaultRef = "master"
	// MarkerFileName is the marker file inside each cache entry.
	MarkerFileName = "checked_out"
	// NeverMarker stands in for a missing marker file.
	NeverMarker = "never"
	// BuildingBaseValue in the root dependency variable means the project
	// being built is the root dependency itself.
	BuildingBaseValue = "SELF"
)

// ErrNoCacheDir is returned when a Session is created without a cache root.
var ErrNoCacheDir = errors.New("cache directory is not set")

type (
	// Options configures a Session. CacheDir and ManifestPath are required;
	// every other field has a default.
	Options struct {
		// CacheDir is the root of all cache entries.
		CacheDir string
		// ManifestPath is the Location Manifest file.
		ManifestPath string
		// SearchPath overrides SETUP_PATH when non-empty.
		SearchPath string
		// WorkDir is the project checkout, used when building the root
		// dependency itself. Defaults to the current directory.
		WorkDir string
		// LookupEnv replaces os.LookupEnv.
		LookupEnv setup.LookupEnvFunc
		// Logger receives progress and warnings.
		Logger *log.Logger
		// VCS defaults to a go-git backend.
		VCS VCS
		// Hooks defaults to a HookRunner with the "patch" tool.
		Hooks HookExecutor
		// RootDependency defaults to DefaultRootDependency.
		RootDependency string
		// RootVarName defaults to DefaultRootVarName.
		RootVarName string
		// RepoOwner defaults to DefaultRepoOwner.
		RepoOwner string
		// CompatPatch is applied to fresh root checkouts of the 3.14 series.
		// Empty disables the fixup.
		CompatPatch string
	}

	// Session carries the state of one resolution run.
	Session struct {
		store       *setup.Store
		loader      *setup.Loader
		lookupEnv   setup.LookupEnvFunc
		logger      *log.Logger
		vcs         VCS
		hooks       HookExecutor
		writes      *WriteLog
		manifest    *Manifest
		cacheDir    string
		workDir     string
		rootDep     string
		rootVar     string
		repoOwner   string
		compatPatch string

		rebuild   bool
		toCompile []string
		results   []*Result
		places    map[string]string
	}

	// Result is the outcome of Ensure for one dependency.
	Result struct {
		Descriptor Descriptor
		// Path is the cache entry holding the checkout.
		Path string
		// Commit is the head commit of the checkout.
		Commit CommitInfo
		// Fetched is true when the checkout was cloned in this run.
		Fetched bool
		// Rebuild is true when the dependency must be compiled.
		Rebuild bool
	}
)

// NewSession creates a Session with an empty Settings Store.
func NewSession(opts Options) (*Session, error) {
	if opts.CacheDir == "" {
		return nil, ErrNoCacheDir
	}
	s := &Session{
		store:       setup.NewStore(),
		lookupEnv:   opts.LookupEnv,
		logger:      opts.Logger,
		vcs:         opts.VCS,
		hooks:       opts.Hooks,
		writes:      &WriteLog{},
		cacheDir:    opts.CacheDir,
		workDir:     opts.WorkDir,
		rootDep:     cmp.Or(opts.RootDependency, DefaultRootDependency),
		rootVar:     cmp.Or(opts.RootVarName, DefaultRootVarName),
		repoOwner:   cmp.Or(opts.RepoOwner, DefaultRepoOwner),
		compatPatch: opts.CompatPatch,
		places:      make(map[string]string),
	}
	if s.lookupEnv == nil {
		s.lookupEnv = os.LookupEnv
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.vcs == nil {
		s.vcs = NewGitVCS(WithGitLookupEnv(s.lookupEnv))
	}
	if s.hooks == nil {
		s.hooks = NewHookRunner(WithHookLogger(s.logger))
	}
	if s.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		s.workDir = wd
	}

	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath = filepath.Join(s.cacheDir, ManifestFileName)
	}
	s.manifest = NewManifest(manifestPath, s.rootVar, s.writes)

	loaderOpts := []setup.LoaderOption{
		setup.WithLookupEnv(s.lookupEnv),
		setup.WithLogger(s.logger),
	}
	if opts.SearchPath != "" {
		loaderOpts = append(loaderOpts, setup.WithSearchPath(opts.SearchPath))
	}
	s.loader = setup.NewLoader(s.store, loaderOpts...)
	return s, nil
}

// Store returns the Settings Store.
func (s *Session) Store() *setup.Store { return s.store }

// Loader returns the setup-file loader bound to the Settings Store.
func (s *Session) Loader() *setup.Loader { return s.loader }

// LoadSetup reads the named setup file into the Settings Store.
func (s *Session) LoadSetup(name string) error { return s.loader.Load(name) }

// CacheDir returns the cache root.
func (s *Session) CacheDir() string { return s.cacheDir }

// WorkDir returns the project checkout directory.
func (s *Session) WorkDir() string { return s.workDir }

// Manifest returns the Location Manifest writer.
func (s *Session) Manifest() *Manifest { return s.manifest }

// Writes returns the log of files written during the session.
func (s *Session) Writes() *WriteLog { return s.writes }

// Logger returns the session logger.
func (s *Session) Logger() *log.Logger { return s.logger }

// RootDependency returns the root dependency name.
func (s *Session) RootDependency() string { return s.rootDep }

// RootVarName returns the manifest variable of the root dependency.
func (s *Session) RootVarName() string { return s.rootVar }

// ToCompile returns the dependencies that must be rebuilt, in fetch order.
func (s *Session) ToCompile() []string { return slices.Clone(s.toCompile) }

// Results returns the outcome of every Ensure call, in call order.
func (s *Session) Results() []*Result { return slices.Clone(s.results) }

// Place returns the checkout location recorded for a manifest variable.
func (s *Session) Place(varName string) (string, bool) {
	p, ok := s.places[varName]
	return p, ok
}

// RootPlace returns the location of the root dependency: the project itself
// when building base, the cache entry otherwise.
func (s *Session) RootPlace() (string, bool) {
	if s.BuildingBase() {
		return s.workDir, true
	}
	return s.Place(s.rootVar)
}

// BuildingBase reports whether the project is the root dependency itself,
// signalled by <root>=SELF in the environment.
func (s *Session) BuildingBase() bool {
	v, _ := s.lookupEnv(s.rootDep)
	return v == BuildingBaseValue
}
