// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

const (
	// DefaultShallowDepth is the clone depth used for the -1 depth sentinel.
	DefaultShallowDepth = 5

	// depthSentinel selects DefaultShallowDepth.
	depthSentinel = -1

	// refSeparator replaces "/" of a ref in cache entry names.
	refSeparator = "~"
)

type (
	// Recursion controls whether submodules are fetched with the checkout.
	Recursion int

	// Depth is the history depth of a clone. The zero value is a full clone.
	Depth struct {
		n int
	}

	// Descriptor is the fully resolved description of one dependency.
	Descriptor struct {
		// Name is the dependency name, e.g. "BASE" or "ASYN".
		Name string
		// Ref is the tag or branch to check out.
		Ref string
		// DirName is the cache entry prefix; the entry is "<DirName>-<Ref>".
		DirName string
		// RepoName is the repository name on the hosting service.
		RepoName string
		// RepoOwner is the account or organization owning the repository.
		RepoOwner string
		// RepoURL is the clone URL.
		RepoURL string
		// VarName is the Location Manifest variable for this dependency.
		VarName string
		// Recursion selects recursive submodule fetching.
		Recursion Recursion
		// Depth selects the clone depth.
		Depth Depth
		// Hook is the optional post-fetch action, nil when none is declared.
		Hook Hook
	}
)

const (
	// RecursionYes fetches submodules recursively.
	RecursionYes Recursion = iota
	// RecursionNo fetches the top-level repository only.
	RecursionNo
)

// ParseRecursion parses a <DEP>_RECURSIVE value. Accepted spellings are
// 1, yes, 0 and no in any letter case; anything else is rejected.
func ParseRecursion(dep, value string) (Recursion, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "yes":
		return RecursionYes, nil
	case "0", "no":
		return RecursionNo, nil
	default:
		return RecursionYes, &InvalidRecursionError{Dependency: dep, Value: value}
	}
}

// String returns YES or NO.
func (r Recursion) String() string {
	if r == RecursionNo {
		return "NO"
	}
	return "YES"
}

// FullDepth returns the depth of a complete clone.
func FullDepth() Depth { return Depth{} }

// ShallowDepth returns a shallow depth of n commits. n must be positive.
func ShallowDepth(n int) Depth { return Depth{n: n} }

// ParseDepth parses a <DEP>_DEPTH value. The -1 sentinel (and an empty
// value) mean DefaultShallowDepth, 0 means a full clone and a positive
// integer is an exact shallow depth. Values below -1 are rejected rather
// than passed on as negative depths.
func ParseDepth(dep, value string) (Depth, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return ShallowDepth(DefaultShallowDepth), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < depthSentinel {
		return Depth{}, &InvalidDepthError{Dependency: dep, Value: value}
	}
	switch n {
	case depthSentinel:
		return ShallowDepth(DefaultShallowDepth), nil
	case 0:
		return FullDepth(), nil
	default:
		return ShallowDepth(n), nil
	}
}

// IsFull reports whether the depth requests the complete history.
func (d Depth) IsFull() bool { return d.n == 0 }

// Commits returns the number of commits to fetch, 0 for a full clone.
func (d Depth) Commits() int { return d.n }

// String returns "full" or "shallow(n)".
func (d Depth) String() string {
	if d.IsFull() {
		return "full"
	}
	return fmt.Sprintf("shallow(%d)", d.n)
}

// EntryName returns the cache entry directory name "<DirName>-<Ref>".
// Path separators in the ref (e.g. "release/1.0") become "~", which git
// forbids in ref names, so distinct refs never share an entry.
func (d Descriptor) EntryName() string {
	return d.DirName + "-" + strings.ReplaceAll(path.Clean(d.Ref), "/", refSeparator)
}
