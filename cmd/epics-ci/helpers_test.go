// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/epics-base/epics-ci/internal/driver"
	"github.com/epics-base/epics-ci/pkg/deps"
)

const fakeHeadFile = ".fakehead"

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type (
	// fakeVCS serves every known URL with the same tag; a checkout holds
	// the remote's files and fakeHeadFile.
	fakeVCS struct {
		files map[string]map[string]string
	}

	fakeRunner struct {
		commands []string
		runErr   error
	}

	testApp struct {
		*App
		runner *fakeRunner
		stdout *bytes.Buffer
		stderr *bytes.Buffer
		cache  string
		work   string
		env    map[string]string
	}
)

func (f *fakeVCS) ResolveRef(_ context.Context, url, ref string) (deps.RemoteRef, bool, error) {
	if _, ok := f.files[url]; !ok {
		return deps.RemoteRef{}, false, nil
	}
	return deps.RemoteRef{Name: "refs/tags/" + ref, Short: ref, Kind: deps.RefTag}, true, nil
}

func (f *fakeVCS) Clone(_ context.Context, req deps.CloneRequest) error {
	for name, content := range f.files[req.URL] {
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
	return os.WriteFile(filepath.Join(req.Dest, fakeHeadFile), []byte(strings.Repeat("c", 40)), 0o644)
}

func (f *fakeVCS) LastCommit(_ context.Context, dir string) (deps.CommitInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, fakeHeadFile))
	if err != nil {
		return deps.CommitInfo{}, err
	}
	return deps.CommitInfo{Hash: deps.GitCommit(data), Subject: "release"}, nil
}

func (r *fakeRunner) Run(_ context.Context, cmd driver.Command) error {
	r.commands = append(r.commands, cmd.String())
	return r.runErr
}

func (r *fakeRunner) Output(_ context.Context, cmd driver.Command) (string, error) {
	r.commands = append(r.commands, cmd.String())
	if cmd.Name == "perl" {
		return "linux-x86_64\n", nil
	}
	return "GNU Make 4.3\n", nil
}

// newTestApp builds an App over temporary cache, config, setup and work
// directories. env is the whole process environment; SETUP_PATH and
// CACHEDIR are filled in unless present.
func newTestApp(t *testing.T, env map[string]string) *testApp {
	t.Helper()

	cache := t.TempDir()
	work := t.TempDir()
	setupDir := t.TempDir()
	writeFile(t, filepath.Join(setupDir, "defaults.set"),
		"BASE=R7.0.8\nBASE_REPOOWNER=epics-base\nBASE_REPONAME=epics-base\nASYN=R4-44\n")

	if _, ok := env["SETUP_PATH"]; !ok {
		env["SETUP_PATH"] = setupDir
	}
	if _, ok := env["CACHEDIR"]; !ok {
		env["CACHEDIR"] = cache
	}
	environ := make([]string, 0, len(env))
	for k, v := range env {
		environ = append(environ, fmt.Sprintf("%s=%s", k, v))
	}

	runner := &fakeRunner{}
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	app, err := NewApp(Dependencies{
		LookupEnv: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
		Environ:   environ,
		WorkDir:   work,
		ConfigDir: t.TempDir(),
		VCS: &fakeVCS{files: map[string]map[string]string{
			"https://github.com/epics-base/epics-base.git": {
				"configure/CONFIG_BASE_VERSION": "EPICS_VERSION = 7\n",
				"configure/RULES_BUILD":         "test-results: tapfiles\n",
				"configure/CONFIG_SITE":         "",
				"configure/os/CONFIG.Common":    "",
				"startup/EpicsHostArch.pl":      "",
			},
			"https://github.com/epics-modules/asyn.git": {
				"configure/RELEASE": "EPICS_BASE=/opt\n",
			},
		}},
		Runner: runner,
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return &testApp{App: app, runner: runner, stdout: stdout, stderr: stderr, cache: cache, work: work, env: env}
}

// run executes args, returning the exit code and plain-text output.
func (a *testApp) run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	a.stdout.Reset()
	a.stderr.Reset()
	code = a.Run(context.Background(), args)
	return code, ansiEscape.ReplaceAllString(a.stdout.String(), ""), ansiEscape.ReplaceAllString(a.stderr.String(), "")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
