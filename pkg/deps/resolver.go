// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"fmt"
	"slices"
	"strings"
)

const (
	suffixDirName   = "_DIRNAME"
	suffixRepoName  = "_REPONAME"
	suffixRepoOwner = "_REPOOWNER"
	suffixRepoURL   = "_REPOURL"
	suffixVarName   = "_VARNAME"
	suffixRecursive = "_RECURSIVE"
	suffixDepth     = "_DEPTH"
	suffixHook      = "_HOOK"

	repoOwnerKey = "REPOOWNER"
)

// overrideSuffixes are the per-dependency settings read from the
// environment, the bare dependency name (its ref) first.
var overrideSuffixes = []string{
	"",
	suffixDirName,
	suffixRepoName,
	suffixRepoOwner,
	suffixRepoURL,
	suffixVarName,
	suffixRecursive,
	suffixDepth,
	suffixHook,
}

// Resolve completes the descriptor of dep. Environment values for the
// dependency's settings overwrite setup-file values; computed defaults only
// fill settings that are still missing. Resolve writes the completed
// settings back into the Settings Store and may be called repeatedly.
func (s *Session) Resolve(dep string) (Descriptor, error) {
	if strings.TrimSpace(dep) == "" {
		return Descriptor{}, ErrInvalidDependencyName
	}

	st := s.store
	for _, suffix := range overrideSuffixes {
		key := dep + suffix
		if v, ok := s.lookupEnv(key); ok {
			st.Set(key, v)
			s.logger.Debugf("Override %s=%s from environment", key, v)
		}
	}

	lower := strings.ToLower(dep)
	owner := st.SetDefault(repoOwnerKey, s.repoOwner)

	d := Descriptor{Name: dep}
	d.Ref = st.SetDefault(dep, DefaultRef)
	d.DirName = st.SetDefault(dep+suffixDirName, lower)
	d.RepoName = st.SetDefault(dep+suffixRepoName, lower)
	d.RepoOwner = st.SetDefault(dep+suffixRepoOwner, owner)
	d.RepoURL = st.SetDefault(dep+suffixRepoURL,
		fmt.Sprintf("https://github.com/%s/%s.git", d.RepoOwner, d.RepoName))

	varName := dep
	if dep == s.rootDep {
		varName = s.rootVar
	}
	d.VarName = st.SetDefault(dep+suffixVarName, varName)

	recursion, err := ParseRecursion(dep, st.SetDefault(dep+suffixRecursive, RecursionYes.String()))
	if err != nil {
		return Descriptor{}, err
	}
	d.Recursion = recursion

	depth, err := ParseDepth(dep, st.SetDefault(dep+suffixDepth, fmt.Sprint(depthSentinel)))
	if err != nil {
		return Descriptor{}, err
	}
	d.Depth = depth

	if v, ok := st.Get(dep + suffixHook); ok {
		d.Hook = ParseHook(v)
	}
	return d, nil
}

// Modules returns the dependencies to fetch, in fetch order: the root
// dependency, then ADD_MODULES, then MODULES (upper-cased, environment
// winning over setup files). It is empty when building the root dependency
// itself. A module named twice is fetched once, at its first position.
func (s *Session) Modules() []string {
	if s.BuildingBase() {
		return nil
	}

	modules := []string{s.rootDep}
	for _, key := range []string{"ADD_MODULES", "MODULES"} {
		if v, ok := s.lookupEnv(key); ok {
			s.store.Set(key, v)
		}
		for _, m := range strings.Fields(strings.ToUpper(s.store.Value(key))) {
			if !slices.Contains(modules, m) {
				modules = append(modules, m)
			}
		}
	}
	return modules
}
