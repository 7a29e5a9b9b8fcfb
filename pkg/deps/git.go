// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/epics-base/epics-ci/pkg/setup"
)

type (
	// VCS is the version-control backend used by the fetch engine.
	VCS interface {
		// ResolveRef looks ref up among the branches and tags of the remote
		// at url. found is false when ref names neither.
		ResolveRef(ctx context.Context, url, ref string) (remote RemoteRef, found bool, err error)
		// Clone checks out req.Ref of req.URL into req.Dest.
		Clone(ctx context.Context, req CloneRequest) error
		// LastCommit returns the head commit of the checkout in dir.
		LastCommit(ctx context.Context, dir string) (CommitInfo, error)
	}

	// CloneRequest describes one clone operation.
	CloneRequest struct {
		URL       string
		Ref       RemoteRef
		Dest      string
		Depth     Depth
		Recursion Recursion
	}

	// GitVCS implements VCS with go-git.
	GitVCS struct {
		lookupEnv setup.LookupEnvFunc
		progress  io.Writer
	}

	// GitOption configures a GitVCS.
	GitOption func(*GitVCS)
)

// WithGitLookupEnv replaces os.LookupEnv for credential discovery.
func WithGitLookupEnv(fn setup.LookupEnvFunc) GitOption {
	return func(g *GitVCS) { g.lookupEnv = fn }
}

// WithProgress sends clone progress output to w.
func WithProgress(w io.Writer) GitOption {
	return func(g *GitVCS) { g.progress = w }
}

// NewGitVCS creates a go-git backed VCS.
func NewGitVCS(opts ...GitOption) *GitVCS {
	g := &GitVCS{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ResolveRef lists the remote refs (like "git ls-remote --refs") and looks
// for a branch or tag named ref. A branch wins over a tag of the same name,
// matching "git clone --branch".
func (g *GitVCS) ResolveRef(ctx context.Context, url, ref string) (RemoteRef, bool, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{
		Auth: g.authFor(url),
	})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return RemoteRef{}, false, nil
		}
		return RemoteRef{}, false, fmt.Errorf("failed to list remote refs of %s: %w", url, err)
	}

	branch := plumbing.NewBranchReferenceName(ref)
	tag := plumbing.NewTagReferenceName(ref)
	var tagFound bool
	for _, r := range refs {
		switch r.Name() {
		case branch:
			return RemoteRef{Name: branch.String(), Short: ref, Kind: RefBranch}, true, nil
		case tag:
			tagFound = true
		}
	}
	if tagFound {
		return RemoteRef{Name: tag.String(), Short: ref, Kind: RefTag}, true, nil
	}
	return RemoteRef{}, false, nil
}

// Clone clones a single branch or tag into req.Dest. A failed clone leaves
// no directory behind.
func (g *GitVCS) Clone(ctx context.Context, req CloneRequest) error {
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	if _, err := git.PlainCloneContext(ctx, req.Dest, false, g.cloneOptions(req)); err != nil {
		_ = os.RemoveAll(req.Dest) // best-effort cleanup of a partial clone
		return err
	}
	return nil
}

// cloneOptions translates a CloneRequest into go-git options.
func (g *GitVCS) cloneOptions(req CloneRequest) *git.CloneOptions {
	opts := &git.CloneOptions{
		URL:           req.URL,
		Auth:          g.authFor(req.URL),
		ReferenceName: plumbing.ReferenceName(req.Ref.Name),
		SingleBranch:  true,
		Depth:         req.Depth.Commits(),
		// followed tags are fetched at their own depth and deepen the clone
		Tags:     git.NoTags,
		Progress: g.progress,
	}
	if req.Recursion == RecursionYes {
		opts.RecurseSubmodules = git.DefaultSubmoduleRecursionDepth
	} else {
		opts.RecurseSubmodules = git.NoRecurseSubmodules
	}
	return opts
}

// LastCommit opens the checkout and reads its head commit object, which
// also verifies that the clone is complete.
func (g *GitVCS) LastCommit(_ context.Context, dir string) (CommitInfo, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("failed to open repository %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("failed to get HEAD of %s: %w", dir, err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return CommitInfo{}, fmt.Errorf("failed to read head commit of %s: %w", dir, err)
	}
	subject, _, _ := strings.Cut(commit.Message, "\n")
	return CommitInfo{Hash: GitCommit(head.Hash().String()), Subject: strings.TrimSpace(subject)}, nil
}

// IsShallow reports whether the repository in dir has truncated history.
func IsShallow(dir string) (bool, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return false, fmt.Errorf("failed to open repository %s: %w", dir, err)
	}
	shallow, err := repo.Storer.Shallow()
	if err != nil {
		return false, fmt.Errorf("failed to read shallow state of %s: %w", dir, err)
	}
	return len(shallow) > 0, nil
}

// authFor picks credentials matching the URL scheme. Public HTTPS remotes
// need none.
func (g *GitVCS) authFor(url string) transport.AuthMethod {
	switch {
	case strings.HasPrefix(url, "git@"), strings.HasPrefix(url, "ssh://"):
		if auth := g.trySSHAuth(); auth != nil {
			return auth
		}
	case strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"):
		if auth := g.tryHTTPAuth(); auth != nil {
			return auth
		}
	}
	return nil
}

// trySSHAuth loads the first usable key from the common SSH key locations.
func (g *GitVCS) trySSHAuth() transport.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	keyPaths := []string{
		filepath.Join(homeDir, ".ssh", "id_ed25519"),
		filepath.Join(homeDir, ".ssh", "id_rsa"),
		filepath.Join(homeDir, ".ssh", "id_ecdsa"),
	}

	for _, keyPath := range keyPaths {
		if _, err := os.Stat(keyPath); err == nil {
			auth, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
			if err == nil {
				return auth
			}
		}
	}

	return nil
}

// tryHTTPAuth uses a token from the environment, if any.
func (g *GitVCS) tryHTTPAuth() transport.AuthMethod {
	tokens := []struct {
		env  string
		user string
	}{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	}
	for _, tok := range tokens {
		if token, ok := g.lookupEnv(tok.env); ok && token != "" {
			return &http.BasicAuth{Username: tok.user, Password: token}
		}
	}
	return nil
}
