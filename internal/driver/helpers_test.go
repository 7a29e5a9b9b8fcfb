// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/epics-base/epics-ci/internal/cictx"
	"github.com/epics-base/epics-ci/internal/config"
	"github.com/epics-base/epics-ci/pkg/deps"
)

const fakeHeadFile = ".fakehead"

type (
	// fakeVCS serves every URL from remotes; a checkout is the remote's
	// files plus fakeHeadFile.
	fakeVCS struct {
		remotes map[string]fakeRemote
		clones  []string
	}

	fakeRemote struct {
		head    string
		subject string
		files   map[string]string
	}

	noHooks struct{}

	// fakeRunner records commands. Output answers come from outputs, keyed
	// by the command line; run, when set, replaces the default success.
	fakeRunner struct {
		commands []Command
		outputs  map[string]string
		run      func(ctx context.Context, cmd Command) error
	}

	testDriver struct {
		*Driver
		runner  *fakeRunner
		vcs     *fakeVCS
		out     *bytes.Buffer
		cache   string
		work    string
		environ map[string]string
	}
)

func (f *fakeVCS) ResolveRef(_ context.Context, url, ref string) (deps.RemoteRef, bool, error) {
	if _, ok := f.remotes[url]; !ok {
		return deps.RemoteRef{}, false, nil
	}
	return deps.RemoteRef{Name: "refs/tags/" + ref, Short: ref, Kind: deps.RefTag}, true, nil
}

func (f *fakeVCS) Clone(_ context.Context, req deps.CloneRequest) error {
	remote := f.remotes[req.URL]
	f.clones = append(f.clones, req.URL)
	for name, content := range remote.files {
		path := filepath.Join(req.Dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(req.Dest, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(req.Dest, fakeHeadFile), []byte(remote.head+"\n"+remote.subject), 0o644)
}

func (f *fakeVCS) LastCommit(_ context.Context, dir string) (deps.CommitInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, fakeHeadFile))
	if err != nil {
		return deps.CommitInfo{}, err
	}
	head, subject, _ := strings.Cut(string(data), "\n")
	return deps.CommitInfo{Hash: deps.GitCommit(head), Subject: subject}, nil
}

func (noHooks) RunHook(context.Context, deps.Hook, string, *deps.WriteLog) error { return nil }

func (r *fakeRunner) Run(ctx context.Context, cmd Command) error {
	r.commands = append(r.commands, cmd)
	if r.run != nil {
		return r.run(ctx, cmd)
	}
	return nil
}

func (r *fakeRunner) Output(_ context.Context, cmd Command) (string, error) {
	r.commands = append(r.commands, cmd)
	out, ok := r.outputs[cmd.String()]
	if !ok && cmd.Name == "make" {
		return "GNU Make 4.3\n", nil
	}
	return out, nil
}

// lines returns the recorded command lines, with dir when it is not the
// working directory.
func (r *fakeRunner) lines(work string) []string {
	out := make([]string, 0, len(r.commands))
	for _, c := range r.commands {
		line := c.String()
		if c.Dir != "" && c.Dir != work {
			line += " @" + filepath.Base(c.Dir)
		}
		out = append(out, line)
	}
	return out
}

func hash(c byte) string { return strings.Repeat(string(c), 40) }

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

const (
	baseURL = "https://github.com/epics-base/epics-base.git"
	asynURL = "https://github.com/epics-modules/asyn.git"
)

// newRemotes returns a 7.0 base and an asyn module.
func newRemotes() *fakeVCS {
	return &fakeVCS{remotes: map[string]fakeRemote{
		baseURL: {
			head:    hash('b'),
			subject: "Release 7.0.8",
			files: map[string]string{
				"configure/CONFIG_BASE_VERSION":  "EPICS_VERSION = 7\n",
				"configure/RULES_BUILD":          "all: install\ntest-results: tapfiles\n",
				"configure/CONFIG_SITE":          "# site\n",
				"configure/os/CONFIG.Common.any": "",
				"startup/EpicsHostArch.pl":       "print 'linux-x86_64'",
			},
		},
		asynURL: {
			head:    hash('a'),
			subject: "asyn R4-44",
			files: map[string]string{
				"configure/RELEASE": "EPICS_BASE=/opt/epics/base\n",
			},
		},
	}}
}

// newTestDriver builds a driver over a fresh work tree. cache may be "" for
// a new cache directory. env is the whole process environment.
func newTestDriver(t *testing.T, cache string, vcs *fakeVCS, ci *cictx.Context, env map[string]string) *testDriver {
	t.Helper()

	if cache == "" {
		cache = t.TempDir()
	}
	work := t.TempDir()
	setupDir := t.TempDir()
	mustWrite(t, filepath.Join(setupDir, "defaults.set"),
		"BASE=R7.0.8\nBASE_REPOOWNER=epics-base\nBASE_REPONAME=epics-base\nASYN=R4-44\n")

	lookupEnv := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	session, err := deps.NewSession(deps.Options{
		CacheDir:   cache,
		SearchPath: setupDir,
		WorkDir:    work,
		LookupEnv:  lookupEnv,
		VCS:        vcs,
		Hooks:      noHooks{},
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	environ := make([]string, 0, len(env))
	for k, v := range env {
		environ = append(environ, fmt.Sprintf("%s=%s", k, v))
	}

	cfg := config.DefaultConfigWith(lookupEnv)
	cfg.CacheDir = cache

	runner := &fakeRunner{outputs: map[string]string{}}
	out := &bytes.Buffer{}
	d, err := New(Options{
		Session: session,
		Context: ci,
		Config:  cfg,
		Runner:  runner,
		Stdout:  out,
		Stderr:  out,
		Environ: environ,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testDriver{Driver: d, runner: runner, vcs: vcs, out: out, cache: cache, work: work, environ: env}
}

// linuxCI is a GitHub Actions Linux gcc context.
func linuxCI() *cictx.Context {
	return cictx.Detect(func(key string) (string, bool) {
		v, ok := map[string]string{
			"GITHUB_ACTIONS": "true",
			"RUNNER_OS":      "Linux",
		}[key]
		return v, ok
	})
}
