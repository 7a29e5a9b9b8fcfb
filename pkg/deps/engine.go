// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// releaseInclude replaces configure/RELEASE of fresh non-root checkouts.
	releaseInclude = "-include $(TOP)/../" + ManifestFileName + "\n"

	// oldSeriesMarker in configure/CONFIG_BASE_VERSION marks a 3.14 root.
	oldSeriesMarker = "BASE_3_14=YES"
)

// Ensure makes sure the cache holds a checkout of dep at its declared ref
// and records its location in the manifest. An entry whose marker matches
// its head commit is reused untouched; any other entry is removed and
// cloned again. Once one dependency has been cloned, it and every
// dependency ensured after it are flagged for rebuild.
func (s *Session) Ensure(ctx context.Context, dep string) (*Result, error) {
	d, err := s.Resolve(dep)
	if err != nil {
		return nil, err
	}
	s.logger.Debugf("Adding dependency %s with ref %s", dep, d.Ref)

	ref, found, err := s.vcs.ResolveRef(ctx, d.RepoURL, d.Ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &UnknownRefError{Dependency: dep, Ref: d.Ref, URL: d.RepoURL}
	}

	place := filepath.Join(s.cacheDir, d.EntryName())
	result := &Result{Descriptor: d, Path: place}

	if isDir(place) {
		status, err := s.checkEntry(ctx, place)
		if err != nil {
			return nil, err
		}
		if status.UpToDate() {
			s.logger.Infof("Found %s of dependency %s up-to-date in %s", d.Ref, dep, place)
			result.Commit = status.Head
		} else {
			s.logger.Debugf("Dependency %s out of date (marker %s, head %s), removing", dep, status.Marker, status.Head.Hash)
			if err := forceRemoveAll(place); err != nil {
				return nil, fmt.Errorf("failed to remove stale cache entry %s: %w", place, err)
			}
		}
	}

	if !isDir(place) {
		commit, err := s.fetch(ctx, d, ref, place)
		if err != nil {
			return nil, err
		}
		result.Commit = commit
		result.Fetched = true
		s.rebuild = true
	}

	if s.rebuild {
		result.Rebuild = true
		s.toCompile = append(s.toCompile, dep)
	}
	if err := s.manifest.Record(d.VarName, place); err != nil {
		return nil, err
	}
	s.places[d.VarName] = place
	s.results = append(s.results, result)
	return result, nil
}

// fetch clones d into place, applies the post-clone fixups and the hook,
// and writes the marker.
func (s *Session) fetch(ctx context.Context, d Descriptor, ref RemoteRef, place string) (CommitInfo, error) {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return CommitInfo{}, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s.logger.Infof("Cloning %s of dependency %s into %s", d.Ref, d.Name, place)
	req := CloneRequest{
		URL:       d.RepoURL,
		Ref:       ref,
		Dest:      place,
		Depth:     d.Depth,
		Recursion: d.Recursion,
	}
	if err := s.vcs.Clone(ctx, req); err != nil {
		return CommitInfo{}, &CloneError{Dependency: d.Name, Ref: d.Ref, Path: place, Err: err}
	}
	commit, err := s.vcs.LastCommit(ctx, place)
	if err != nil {
		return CommitInfo{}, &CloneError{Dependency: d.Name, Ref: d.Ref, Path: place, Err: err}
	}
	s.logger.Info(commit.OneLine(), "dependency", d.Name)

	if err := s.fixup(ctx, d, place); err != nil {
		return CommitInfo{}, err
	}
	if err := s.runHook(ctx, d, place); err != nil {
		return CommitInfo{}, err
	}

	// hooks may commit; the marker holds the head observed afterwards
	commit, err = s.vcs.LastCommit(ctx, place)
	if err != nil {
		return CommitInfo{}, &CloneError{Dependency: d.Name, Ref: d.Ref, Path: place, Err: err}
	}
	if err := commit.Hash.Validate(); err != nil {
		return CommitInfo{}, &CloneError{Dependency: d.Name, Ref: d.Ref, Path: place, Err: err}
	}
	if err := s.writes.WriteFile(filepath.Join(place, MarkerFileName), []byte(commit.Hash.String()+"\n")); err != nil {
		return CommitInfo{}, err
	}
	return commit, nil
}

// fixup adapts a fresh checkout: the root gets the compatibility patch when
// it is a 3.14 release, every other dependency has its configure/RELEASE
// replaced by an include of the shared manifest.
func (s *Session) fixup(ctx context.Context, d Descriptor, place string) error {
	if d.Name == s.rootDep {
		if s.compatPatch == "" {
			return nil
		}
		data, err := os.ReadFile(filepath.Join(place, "configure", "CONFIG_BASE_VERSION"))
		if err != nil || !bytes.Contains(data, []byte(oldSeriesMarker)) {
			return nil
		}
		s.logger.Infof("Adding MSI 1.7 to %s", place)
		return s.hooks.RunHook(ctx, PatchHook{File: s.compatPatch}, place, s.writes)
	}

	release := filepath.Join(place, "configure", "RELEASE")
	if !isFile(release) {
		return nil
	}
	return s.writes.WriteFile(release, []byte(releaseInclude))
}

func (s *Session) runHook(ctx context.Context, d Descriptor, place string) error {
	if d.Hook == nil {
		return nil
	}
	file := HookPath(d.Hook, place)
	if !isFile(file) {
		s.logger.Warnf("Hook %s of dependency %s not found in %s, skipping", d.Hook.Path(), d.Name, place)
		return nil
	}
	s.logger.Infof("Running hook %s in %s", d.Hook.Path(), place)
	return s.hooks.RunHook(ctx, d.Hook, place, s.writes)
}

// EntryStatus compares the marker of a cache entry with its head commit.
type EntryStatus struct {
	// Marker is the marker content, NeverMarker when the file is missing.
	Marker string
	// Head is the checkout's head; zero when the checkout is unreadable.
	Head CommitInfo
}

// UpToDate reports whether the entry can be reused.
func (e EntryStatus) UpToDate() bool {
	return e.Head.Hash != "" && e.Marker == e.Head.Hash.String()
}

// Never reports whether the entry has no marker.
func (e EntryStatus) Never() bool { return e.Marker == NeverMarker }

// String returns "up-to-date", "stale" or "never".
func (e EntryStatus) String() string {
	switch {
	case e.UpToDate():
		return "up-to-date"
	case e.Never():
		return NeverMarker
	default:
		return "stale"
	}
}

// checkEntry reads the marker and head of the entry at place. A checkout
// whose head cannot be read, or whose marker is not a commit id, is
// reported stale rather than failing.
func (s *Session) checkEntry(ctx context.Context, place string) (EntryStatus, error) {
	return readEntryStatus(ctx, s.vcs, place, s.logger.Warnf)
}

func readEntryStatus(ctx context.Context, vcs VCS, place string, warnf func(string, ...any)) (EntryStatus, error) {
	status := EntryStatus{Marker: NeverMarker}
	data, err := os.ReadFile(filepath.Join(place, MarkerFileName))
	switch {
	case err == nil:
		status.Marker = strings.TrimSpace(string(data))
		if err := GitCommit(status.Marker).Validate(); err != nil {
			warnf("Ignoring corrupt marker in %s: %v", place, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return status, fmt.Errorf("failed to read marker of %s: %w", place, err)
	}

	head, err := vcs.LastCommit(ctx, place)
	if err != nil {
		warnf("Cannot read head commit of %s: %v", place, err)
		return status, nil
	}
	status.Head = head
	return status, nil
}

// forceRemoveAll removes path, making read-only entries writable first.
func forceRemoveAll(path string) error {
	if err := os.RemoveAll(path); err == nil {
		return nil
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		mode := os.FileMode(0o600)
		if d.IsDir() {
			mode = 0o700
		}
		_ = os.Chmod(p, mode) // best-effort; RemoveAll reports what remains
		return nil
	})
	return os.RemoveAll(path)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
