// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

const (
	// WriteCreate marks a file written from scratch.
	WriteCreate WriteAction = "create"
	// WriteOverwrite marks an existing file replaced.
	WriteOverwrite WriteAction = "overwrite"
	// WriteAppend marks content appended to a file.
	WriteAppend WriteAction = "append"
	// WriteExtract marks a file produced by an archive hook.
	WriteExtract WriteAction = "extract"
)

type (
	// WriteAction describes how a file was modified.
	WriteAction string

	// WriteRecord is one entry of the WriteLog.
	WriteRecord struct {
		Path   string
		Action WriteAction
	}

	// WriteLog lists the files modified during a session, in order.
	// A nil *WriteLog records nothing.
	WriteLog struct {
		entries []WriteRecord
	}
)

// Record adds an entry.
func (w *WriteLog) Record(path string, action WriteAction) {
	if w == nil {
		return
	}
	w.entries = append(w.entries, WriteRecord{Path: path, Action: action})
}

// Entries returns all records in write order.
func (w *WriteLog) Entries() []WriteRecord {
	if w == nil {
		return nil
	}
	return slices.Clone(w.entries)
}

// WriteFile writes data to path, creating parent directories, and records
// the write.
func (w *WriteLog) WriteFile(path string, data []byte) error {
	action := WriteCreate
	if _, err := os.Stat(path); err == nil {
		action = WriteOverwrite
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Record(path, action)
	return nil
}

// AppendFile appends data to path, creating it if needed, and records the
// write.
func (w *WriteLog) AppendFile(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	w.Record(path, WriteAppend)
	return nil
}
