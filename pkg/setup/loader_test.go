// SPDX-License-Identifier: MPL-2.0

package setup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// envMap returns a LookupEnvFunc backed by a fixed map.
func envMap(env map[string]string) LookupEnvFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func newTestLoader(t *testing.T, searchPath string, env map[string]string) (*Loader, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	l := NewLoader(NewStore(),
		WithSearchPath(searchPath),
		WithLookupEnv(envMap(env)),
		WithLogger(log.New(&out)),
	)
	return l, &out
}

func TestLoadEmptySearchPath(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "  ", ":: :"} {
		l, _ := newTestLoader(t, raw, nil)
		err := l.Load("test01")
		if !errors.Is(err, ErrEmptySearchPath) {
			t.Errorf("Load() with search path %q error = %v, want ErrEmptySearchPath", raw, err)
		}
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("Load() error %v does not match ErrConfiguration", err)
		}
		if err != nil && !strings.Contains(err.Error(), "(SETUP_PATH) is empty") {
			t.Errorf("error message %q does not name SETUP_PATH", err)
		}
	}
}

func TestLoadSearchPathFromEnvironment(t *testing.T) {
	t.Parallel()

	l := NewLoader(NewStore(), WithLookupEnv(envMap(map[string]string{
		SearchPathEnv: "testdata",
	})))
	if err := l.Load("test01"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := l.Store().Value("BASE"); got != "7.0" {
		t.Errorf("BASE = %q, want %q", got, "7.0")
	}

	unset := NewLoader(NewStore(), WithLookupEnv(envMap(nil)))
	if err := unset.Load("test01"); !errors.Is(err, ErrEmptySearchPath) {
		t.Errorf("Load() with unset SETUP_PATH error = %v, want ErrEmptySearchPath", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	l, _ := newTestLoader(t, "testdata:testdata/alt", nil)
	err := l.Load("xxdoesnotexistxx")
	if !errors.Is(err, ErrSetupFileNotFound) {
		t.Fatalf("Load() error = %v, want ErrSetupFileNotFound", err)
	}
	if !strings.Contains(err.Error(), "does not exist in SETUP_PATH") {
		t.Errorf("error message %q lacks search path hint", err)
	}
}

func TestLoadValidSetup(t *testing.T) {
	t.Parallel()

	l, out := newTestLoader(t, ".:testdata", nil)
	if err := l.Load("test01"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]string{"BASE": "7.0", "SNCSEQ": "R2-2-8"}
	if diff := cmp.Diff(want, l.Store().Snapshot()); diff != "" {
		t.Errorf("store mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out.String(), "Opening setup file") {
		t.Errorf("no trace line in output %q", out.String())
	}
}

func TestLoadDoesNotOverridePreset(t *testing.T) {
	t.Parallel()

	l, _ := newTestLoader(t, "testdata", map[string]string{"BASE": "foo"})
	if err := l.Load("test01"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := l.Store().Value("BASE"); got != "foo" {
		t.Errorf("preset BASE overridden by setup file: got %q, want %q", got, "foo")
	}
}

func TestLoadBlankPresetDoesNotWin(t *testing.T) {
	t.Parallel()

	l, _ := newTestLoader(t, "testdata", map[string]string{"BASE": "  "})
	if err := l.Load("test01"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := l.Store().Value("BASE"); got != "7.0" {
		t.Errorf("BASE = %q, want %q", got, "7.0")
	}
}

func TestLoadIncludeFirstSetWins(t *testing.T) {
	t.Parallel()

	l, _ := newTestLoader(t, "testdata", nil)
	if err := l.Load("test02"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]string{
		"BASE":   "foo",
		"SNCSEQ": "R2-2-8",
		"FOO":    "bar",
		"FOO2":   "bar bar2",
		"FOO3":   "bar bar2",
	}
	if diff := cmp.Diff(want, l.Store().Snapshot()); diff != "" {
		t.Errorf("store mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadIncludedValueBeatsLaterAssignment(t *testing.T) {
	t.Parallel()

	l, _ := newTestLoader(t, "testdata", nil)
	if err := l.Load("late"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := l.Store().Value("BASE"); got != "7.0" {
		t.Errorf("BASE = %q, want value from included test01 %q", got, "7.0")
	}
}

func TestLoadDoubleIncludeGetsIgnored(t *testing.T) {
	t.Parallel()

	l, out := newTestLoader(t, "testdata", nil)
	if err := l.Load("test03"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.Contains(out.String(), "Ignoring already included setup file") {
		t.Errorf("output %q lacks duplicate include notice", out.String())
	}
	if n := strings.Count(out.String(), "Opening setup file"); n != 3 {
		t.Errorf("opened %d files, want 3", n)
	}
	if got := len(l.Seen()); got != 3 {
		t.Errorf("Seen() has %d entries, want 3", got)
	}
}

func TestLoadDuplicateIncludeIdempotent(t *testing.T) {
	t.Parallel()

	dup, _ := newTestLoader(t, "testdata", nil)
	if err := dup.Load("dup"); err != nil {
		t.Fatalf("Load(dup) error = %v", err)
	}
	nodup, _ := newTestLoader(t, "testdata", nil)
	if err := nodup.Load("nodup"); err != nil {
		t.Fatalf("Load(nodup) error = %v", err)
	}
	if diff := cmp.Diff(nodup.Store().Snapshot(), dup.Store().Snapshot()); diff != "" {
		t.Errorf("duplicate include changed the store (-nodup +dup):\n%s", diff)
	}
}

func TestLoadSearchOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		searchPath string
		file       string
		key        string
		want       string
	}{
		{"first directory wins", "testdata testdata/alt", "test01", "BASE", "7.0"},
		{"reversed order", "testdata/alt:testdata", "test01", "BASE", "alt"},
		{"found in later directory", "testdata:testdata/alt", "only", "ONLY", "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, _ := newTestLoader(t, tt.searchPath, nil)
			if err := l.Load(tt.file); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got := l.Store().Value(tt.key); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
			}
			if len(l.Seen()) != 1 {
				t.Errorf("Seen() = %v, want exactly one file", l.Seen())
			}
		})
	}
}

func TestLoadMalformedLine(t *testing.T) {
	t.Parallel()

	l, _ := newTestLoader(t, "testdata", nil)
	err := l.Load("bad")
	if !errors.Is(err, ErrMalformedLine) {
		t.Fatalf("Load() error = %v, want ErrMalformedLine", err)
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Line != 2 {
		t.Errorf("error = %#v, want ConfigurationError at line 2", err)
	}
}

func TestLoadIncludeMissingFileFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "top.set"), []byte("include nowhere\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, _ := newTestLoader(t, dir, nil)
	if err := l.Load("top"); !errors.Is(err, ErrSetupFileNotFound) {
		t.Errorf("Load() error = %v, want ErrSetupFileNotFound", err)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want directive
		ok   bool
	}{
		{"", directive{kind: directiveSkip}, true},
		{"   # comment", directive{kind: directiveSkip}, true},
		{"include defaults", directive{kind: directiveInclude, name: "defaults"}, true},
		{"include", directive{}, false},
		{"include a b", directive{}, false},
		{"BASE=7.0", directive{kind: directiveAssign, key: "BASE", value: "7.0"}, true},
		{`  FOO = "bar bar2" `, directive{kind: directiveAssign, key: "FOO", value: "bar bar2"}, true},
		{"URL=a=b", directive{kind: directiveAssign, key: "URL", value: "a=b"}, true},
		{"EMPTY=", directive{kind: directiveAssign, key: "EMPTY", value: ""}, true},
		{"=value", directive{}, false},
		{"NOEQUALS", directive{}, false},
	}

	for _, tt := range tests {
		got, ok := parseLine(tt.line)
		if ok != tt.ok {
			t.Errorf("parseLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestParseSearchPath(t *testing.T) {
	t.Parallel()

	got := ParseSearchPath(".:appveyor  /etc/setup\t:x")
	want := []string{".", "appveyor", "/etc/setup", "x"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseSearchPath() mismatch (-want +got):\n%s", diff)
	}
}
