// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"strings"
)

const (
	// HookPatch applies a unified diff with the patch tool.
	HookPatch HookKind = "patch"
	// HookArchive extracts an archive into the checkout.
	HookArchive HookKind = "archive"
	// HookScript runs a shell script in the built-in interpreter.
	HookScript HookKind = "script"
	// HookExec runs an executable file directly, without a shell.
	HookExec HookKind = "exec"
)

const (
	// ArchiveZip is a zip archive.
	ArchiveZip ArchiveFormat = "zip"
	// ArchiveTar is an uncompressed tar archive.
	ArchiveTar ArchiveFormat = "tar"
	// ArchiveTarGz is a gzip-compressed tar archive.
	ArchiveTarGz ArchiveFormat = "tar.gz"
	// ArchiveTarZst is a zstd-compressed tar archive.
	ArchiveTarZst ArchiveFormat = "tar.zst"
)

type (
	// HookKind names the variant of a Hook.
	HookKind string

	// ArchiveFormat names a supported archive container.
	ArchiveFormat string

	// Hook is a post-fetch action declared by <DEP>_HOOK. The set of
	// variants is closed: PatchHook, ArchiveHook, ScriptHook and ExecHook.
	Hook interface {
		// Path is the hook file, relative to the checkout.
		Path() string
		// Kind identifies the variant.
		Kind() HookKind
		sealed()
	}

	// PatchHook is a .patch or .diff file.
	PatchHook struct{ File string }

	// ArchiveHook is an archive extracted over the checkout.
	ArchiveHook struct {
		File   string
		Format ArchiveFormat
	}

	// ScriptHook is a .sh script.
	ScriptHook struct{ File string }

	// ExecHook is any other file, run as an executable.
	ExecHook struct{ File string }
)

var archiveSuffixes = []struct {
	suffix string
	format ArchiveFormat
}{
	{".tar.gz", ArchiveTarGz},
	{".tgz", ArchiveTarGz},
	{".tar.zst", ArchiveTarZst},
	{".tzst", ArchiveTarZst},
	{".tar", ArchiveTar},
	{".zip", ArchiveZip},
}

// ParseHook chooses the Hook variant for a hook file by its extension.
// It returns nil for an empty path.
func ParseHook(file string) Hook {
	file = strings.TrimSpace(file)
	if file == "" {
		return nil
	}
	lower := strings.ToLower(file)
	switch {
	case strings.HasSuffix(lower, ".patch"), strings.HasSuffix(lower, ".diff"):
		return PatchHook{File: file}
	case strings.HasSuffix(lower, ".sh"):
		return ScriptHook{File: file}
	}
	for _, a := range archiveSuffixes {
		if strings.HasSuffix(lower, a.suffix) {
			return ArchiveHook{File: file, Format: a.format}
		}
	}
	return ExecHook{File: file}
}

// Path implements Hook.
func (h PatchHook) Path() string { return h.File }

// Kind implements Hook.
func (PatchHook) Kind() HookKind { return HookPatch }

func (PatchHook) sealed() {}

// Path implements Hook.
func (h ArchiveHook) Path() string { return h.File }

// Kind implements Hook.
func (ArchiveHook) Kind() HookKind { return HookArchive }

func (ArchiveHook) sealed() {}

// Path implements Hook.
func (h ScriptHook) Path() string { return h.File }

// Kind implements Hook.
func (ScriptHook) Kind() HookKind { return HookScript }

func (ScriptHook) sealed() {}

// Path implements Hook.
func (h ExecHook) Path() string { return h.File }

// Kind implements Hook.
func (ExecHook) Kind() HookKind { return HookExec }

func (ExecHook) sealed() {}
