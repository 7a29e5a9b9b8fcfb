// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ManifestFileName is the Location Manifest file name.
const ManifestFileName = "RELEASE.local"

type (
	// Manifest maintains the Location Manifest, a file of VARNAME=path lines
	// with at most one line per variable and the root variable's line last.
	Manifest struct {
		path    string
		rootVar string
		writes  *WriteLog
	}

	// ManifestEntry is one VARNAME=path line.
	ManifestEntry struct {
		Name  string
		Value string
	}
)

// NewManifest creates a writer for the manifest at path. writes may be nil.
func NewManifest(path, rootVar string, writes *WriteLog) *Manifest {
	return &Manifest{path: path, rootVar: rootVar, writes: writes}
}

// Path returns the manifest file path.
func (m *Manifest) Path() string { return m.path }

// Record sets varName to location. An existing line for varName is replaced
// in place, a new one is appended, and the root variable's line is moved
// to the end. Backslashes in location become forward slashes.
func (m *Manifest) Record(varName, location string) error {
	lines, err := m.readLines()
	if err != nil {
		return err
	}

	updated := varName + "=" + strings.ReplaceAll(location, `\`, "/")
	out := make([]string, 0, len(lines)+2)
	var rootLine string
	var found bool
	for _, line := range lines {
		name := assignedName(line)
		switch {
		case name == m.rootVar:
			rootLine = line
		case name == varName:
			if !found {
				out = append(out, updated)
				found = true
			}
		default:
			out = append(out, line)
		}
	}

	if varName == m.rootVar {
		rootLine = updated
	} else if !found {
		out = append(out, updated)
	}
	if rootLine != "" {
		out = append(out, rootLine)
	}
	return m.write(out)
}

// Entries returns the manifest lines in file order. A missing manifest has
// no entries.
func (m *Manifest) Entries() ([]ManifestEntry, error) {
	lines, err := m.readLines()
	if err != nil {
		return nil, err
	}
	entries := make([]ManifestEntry, 0, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		entries = append(entries, ManifestEntry{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	return entries, nil
}

// Lookup returns the value recorded for varName.
func (m *Manifest) Lookup(varName string) (string, bool, error) {
	entries, err := m.Entries()
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.Name == varName {
			return e.Value, true, nil
		}
	}
	return "", false, nil
}

// CopyTo copies the manifest into dir and returns the path of the copy.
func (m *Manifest) CopyTo(dir string) (string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", m.path, err)
	}
	dest := filepath.Join(dir, ManifestFileName)
	if err := m.writes.WriteFile(dest, data); err != nil {
		return "", err
	}
	return dest, nil
}

// readLines returns the non-blank lines of the manifest, creating an empty
// file (and its parent directories) when none exists.
func (m *Manifest) readLines() ([]string, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := m.writes.WriteFile(m.path, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.path, err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.path, err)
	}
	return lines, nil
}

// write replaces the manifest atomically.
func (m *Manifest) write(lines []string) (err error) {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, "."+ManifestFileName+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name()) // best-effort cleanup
		}
	}()

	if _, err = tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temporary manifest: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary manifest: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set manifest permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", m.path, err)
	}
	m.writes.Record(m.path, WriteOverwrite)
	return nil
}

// assignedName returns the variable a VARNAME=value line assigns, or "".
func assignedName(line string) string {
	name, _, ok := strings.Cut(line, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(name)
}
