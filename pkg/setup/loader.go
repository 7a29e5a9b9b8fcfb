// SPDX-License-Identifier: MPL-2.0

package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
)

const (
	// SearchPathEnv is the environment variable holding the setup search path.
	SearchPathEnv = "SETUP_PATH"

	// FileExt is the extension of setup files.
	FileExt = ".set"

	includeKeyword = "include"
)

type (
	// LookupEnvFunc has the signature of os.LookupEnv. It is injected so that
	// tests never have to mutate the process environment.
	LookupEnvFunc func(key string) (string, bool)

	// Loader reads setup files into a Store.
	//
	// The list of files already read belongs to the Loader, so a fresh Loader
	// (and Store) per session is all the isolation a caller needs.
	Loader struct {
		store      *Store
		searchPath *string
		lookupEnv  LookupEnvFunc
		logger     *log.Logger
		seen       []string
	}

	// LoaderOption configures a Loader.
	LoaderOption func(*Loader)

	directiveKind int

	directive struct {
		kind  directiveKind
		name  string
		key   string
		value string
	}
)

const (
	directiveSkip directiveKind = iota
	directiveInclude
	directiveAssign
)

// WithSearchPath sets the raw search path instead of reading SETUP_PATH.
func WithSearchPath(raw string) LoaderOption {
	return func(l *Loader) { l.searchPath = &raw }
}

// WithLookupEnv replaces os.LookupEnv for environment presets.
func WithLookupEnv(fn LookupEnvFunc) LoaderOption {
	return func(l *Loader) { l.lookupEnv = fn }
}

// WithLogger sets the logger receiving the per-file trace lines.
func WithLogger(logger *log.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader writing into store.
func NewLoader(store *Store, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:     store,
		lookupEnv: os.LookupEnv,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the store this loader writes into.
func (l *Loader) Store() *Store { return l.store }

// Seen returns the resolved paths of all files read so far, in read order.
func (l *Loader) Seen() []string { return slices.Clone(l.seen) }

// ParseSearchPath splits a search path on colons and whitespace.
func ParseSearchPath(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ':' || unicode.IsSpace(r)
	})
}

// SearchPath returns the directories that Load searches, in order.
func (l *Loader) SearchPath() []string {
	if l.searchPath != nil {
		return ParseSearchPath(*l.searchPath)
	}
	raw, _ := l.lookupEnv(SearchPathEnv)
	return ParseSearchPath(raw)
}

// Load reads "<name>.set" from the first search directory that holds it,
// recursively following include directives.
func (l *Loader) Load(name string) error {
	dirs := l.SearchPath()
	if len(dirs) == 0 {
		return &ConfigurationError{Name: name, Err: ErrEmptySearchPath}
	}

	file, err := l.find(name, dirs)
	if err != nil {
		return err
	}

	if slices.Contains(l.seen, file) {
		l.logger.Infof("Ignoring already included setup file %s", file)
		return nil
	}
	l.seen = append(l.seen, file)

	l.logger.Infof("Opening setup file %s", file)
	if err := l.read(name, file); err != nil {
		return err
	}
	l.logger.Debugf("Done with setup file %s", file)
	return nil
}

// find returns the cleaned absolute path of the first "<name>.set" on the
// search path.
func (l *Loader) find(name string, dirs []string) (string, error) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name+FileExt)
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			return "", fmt.Errorf("resolve setup file %s: %w", candidate, err)
		}
		return abs, nil
	}
	return "", &ConfigurationError{Name: name, SearchPath: dirs, Err: ErrSetupFileNotFound}
}

func (l *Loader) read(name, file string) (err error) {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open setup file %s: %w", file, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		d, ok := parseLine(scanner.Text())
		if !ok {
			return &ConfigurationError{Name: name, File: file, Line: lineNo, Err: ErrMalformedLine}
		}
		switch d.kind {
		case directiveSkip:
		case directiveInclude:
			l.logger.Debugf("%s: found include directive, reading %s next", file, d.name)
			if err := l.Load(d.name); err != nil {
				return err
			}
		case directiveAssign:
			l.assign(file, d.key, d.value)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read setup file %s: %w", file, err)
	}
	return nil
}

// assign applies the three priority tiers: environment preset, first
// setup-file value, later setup-file values (ignored).
func (l *Loader) assign(file, key, value string) {
	if !l.store.Has(key) {
		preset, _ := l.lookupEnv(key)
		l.store.Set(key, preset)
	}
	if l.store.IsBlank(key) {
		l.logger.Debugf("%s: setup[%s] = %s", file, key, value)
		l.store.Set(key, value)
	}
}

// parseLine classifies one line of a setup file. It returns false for a
// line that cannot be interpreted.
func parseLine(raw string) (directive, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return directive{kind: directiveSkip}, true
	}

	if fields := strings.Fields(line); fields[0] == includeKeyword {
		if len(fields) != 2 {
			return directive{}, false
		}
		return directive{kind: directiveInclude, name: fields[1]}, true
	}

	key, value, found := strings.Cut(line, "=")
	if !found {
		return directive{}, false
	}
	key = unquote(strings.TrimSpace(key))
	if key == "" {
		return directive{}, false
	}
	return directive{kind: directiveAssign, key: key, value: unquote(strings.TrimSpace(value))}, true
}

// unquote strips one pair of matching surrounding quotes and the
// whitespace inside them.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
