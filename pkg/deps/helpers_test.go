// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/epics-base/epics-ci/pkg/setup"
)

// fakeHeadFile stores the head commit of a fake checkout.
const fakeHeadFile = ".fakehead"

type (
	fakeRemote struct {
		branches []string
		tags     []string
		head     string
		files    map[string]string
	}

	// fakeVCS serves remotes from memory. A checkout is a directory with
	// the remote's files plus fakeHeadFile.
	fakeVCS struct {
		remotes  map[string]*fakeRemote
		clones   []CloneRequest
		cloneErr error
	}

	hookCall struct {
		Hook Hook
		Dir  string
	}

	fakeHooks struct {
		calls []hookCall
		err   error
	}
)

func newFakeVCS() *fakeVCS {
	return &fakeVCS{remotes: make(map[string]*fakeRemote)}
}

func (f *fakeVCS) add(url string, r *fakeRemote) *fakeRemote {
	f.remotes[url] = r
	return r
}

func (f *fakeVCS) ResolveRef(_ context.Context, url, ref string) (RemoteRef, bool, error) {
	r, ok := f.remotes[url]
	if !ok {
		return RemoteRef{}, false, nil
	}
	if slices.Contains(r.branches, ref) {
		return RemoteRef{Name: "refs/heads/" + ref, Short: ref, Kind: RefBranch}, true, nil
	}
	if slices.Contains(r.tags, ref) {
		return RemoteRef{Name: "refs/tags/" + ref, Short: ref, Kind: RefTag}, true, nil
	}
	return RemoteRef{}, false, nil
}

func (f *fakeVCS) Clone(_ context.Context, req CloneRequest) error {
	f.clones = append(f.clones, req)
	if f.cloneErr != nil {
		return f.cloneErr
	}
	r := f.remotes[req.URL]
	for name, content := range r.files {
		p := filepath.Join(req.Dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(req.Dest, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(req.Dest, fakeHeadFile), []byte(r.head), 0o644)
}

func (f *fakeVCS) LastCommit(_ context.Context, dir string) (CommitInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, fakeHeadFile))
	if err != nil {
		return CommitInfo{}, errors.New("not a repository")
	}
	return CommitInfo{Hash: GitCommit(strings.TrimSpace(string(data))), Subject: "fake commit"}, nil
}

func (h *fakeHooks) RunHook(_ context.Context, hook Hook, dir string, _ *WriteLog) error {
	h.calls = append(h.calls, hookCall{Hook: hook, Dir: dir})
	return h.err
}

// hash returns a 40-character commit id made of c.
func hash(c byte) string {
	return strings.Repeat(string(c), 40)
}

// envMap returns a LookupEnvFunc backed by a fixed map.
func envMap(env map[string]string) setup.LookupEnvFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

type testSession struct {
	*Session
	vcs   *fakeVCS
	hooks *fakeHooks
	out   *bytes.Buffer
	cache string
}

func newTestSession(t *testing.T, env map[string]string) *testSession {
	t.Helper()
	var out bytes.Buffer
	vcs := newFakeVCS()
	hooks := &fakeHooks{}
	cache := filepath.Join(t.TempDir(), "cache")
	s, err := NewSession(Options{
		CacheDir:    cache,
		WorkDir:     t.TempDir(),
		LookupEnv:   envMap(env),
		Logger:      log.New(&out),
		VCS:         vcs,
		Hooks:       hooks,
		CompatPatch: "/scripts/add-msi-to-314.patch",
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return &testSession{Session: s, vcs: vcs, hooks: hooks, out: &out, cache: cache}
}
