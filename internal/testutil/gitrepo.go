// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// fixtureEpoch makes fixture commit hashes reproducible.
var fixtureEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// GitRepo is a non-bare repository built in-process for tests.
type GitRepo struct {
	t       testing.TB
	Dir     string
	Repo    *git.Repository
	commits int
}

// NewGitRepo initializes a repository in dir with "master" as its branch.
func NewGitRepo(t testing.TB, dir string) *GitRepo {
	t.Helper()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Master},
	})
	if err != nil {
		t.Fatalf("failed to init repository in %s: %v", dir, err)
	}
	return &GitRepo{t: t, Dir: dir, Repo: repo}
}

// URL returns a file:// URL for cloning the repository.
func (r *GitRepo) URL() string {
	return "file://" + filepath.ToSlash(r.Dir)
}

// WriteFile writes a file relative to the work tree.
func (r *GitRepo) WriteFile(rel, content string) {
	r.t.Helper()
	MustWriteFile(r.t, filepath.Join(r.Dir, filepath.FromSlash(rel)), content)
}

// Commit stages everything and commits it, returning the new hash.
func (r *GitRepo) Commit(msg string) string {
	r.t.Helper()
	wt, err := r.Repo.Worktree()
	if err != nil {
		r.t.Fatalf("failed to get worktree: %v", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		r.t.Fatalf("failed to stage files: %v", err)
	}
	r.commits++
	sig := &object.Signature{
		Name:  "Fixture",
		Email: "fixture@example.com",
		When:  fixtureEpoch.Add(time.Duration(r.commits) * time.Minute),
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig, AllowEmptyCommits: true})
	if err != nil {
		r.t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

// CommitN adds n commits, each changing a counter file.
func (r *GitRepo) CommitN(n int) string {
	r.t.Helper()
	var head string
	for range n {
		r.WriteFile("counter.txt", fmt.Sprintf("%d\n", r.commits+1))
		head = r.Commit(fmt.Sprintf("commit %d", r.commits+1))
	}
	return head
}

// Head returns the hash of the current head commit.
func (r *GitRepo) Head() string {
	r.t.Helper()
	ref, err := r.Repo.Head()
	if err != nil {
		r.t.Fatalf("failed to read HEAD: %v", err)
	}
	return ref.Hash().String()
}

// Tag creates a lightweight tag at the head commit.
func (r *GitRepo) Tag(name string) {
	r.t.Helper()
	ref, err := r.Repo.Head()
	if err != nil {
		r.t.Fatalf("failed to read HEAD: %v", err)
	}
	if _, err := r.Repo.CreateTag(name, ref.Hash(), nil); err != nil {
		r.t.Fatalf("failed to create tag %s: %v", name, err)
	}
}

// Branch creates a branch at the head commit without checking it out.
func (r *GitRepo) Branch(name string) {
	r.t.Helper()
	ref, err := r.Repo.Head()
	if err != nil {
		r.t.Fatalf("failed to read HEAD: %v", err)
	}
	branch := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), ref.Hash())
	if err := r.Repo.Storer.SetReference(branch); err != nil {
		r.t.Fatalf("failed to create branch %s: %v", name, err)
	}
}

// RequireGit skips the test when the git executable is missing or -short
// is set. go-git's file transport runs git-upload-pack for local clones.
func RequireGit(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping git transport test in short mode")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not found on PATH")
	}
}

// MustGit runs the git CLI in dir with a fixed identity.
func MustGit(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-c", "protocol.file.allow=always"}, args...)...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Fixture", "GIT_AUTHOR_EMAIL=fixture@example.com",
		"GIT_COMMITTER_NAME=Fixture", "GIT_COMMITTER_EMAIL=fixture@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}
