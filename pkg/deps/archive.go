// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrUnsupportedArchive is returned for an archive format without extractor.
var ErrUnsupportedArchive = errors.New("unsupported archive format")

// extractArchive extracts the archive file into destDir, overwriting files
// that already exist. Entries escaping destDir are rejected.
func extractArchive(file string, format ArchiveFormat, destDir string, writes *WriteLog) error {
	absDestDir, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve destination path: %w", err)
	}

	switch format {
	case ArchiveZip:
		return extractZip(file, absDestDir, writes)
	case ArchiveTar, ArchiveTarGz, ArchiveTarZst:
		return extractTarFile(file, format, absDestDir, writes)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedArchive, format)
	}
}

func extractZip(file, absDestDir string, writes *WriteLog) (err error) {
	zipReader, err := zip.OpenReader(file)
	if err != nil {
		return fmt.Errorf("failed to open ZIP file: %w", err)
	}
	defer func() {
		if closeErr := zipReader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, f := range zipReader.File {
		destPath, err := archiveDest(absDestDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}
		if err := extractZipFile(f, destPath); err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		writes.Record(destPath, WriteExtract)
	}
	return nil
}

func extractZipFile(f *zip.File, destPath string) (err error) {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return writeArchiveFile(src, destPath, f.Mode())
}

func extractTarFile(file string, format ArchiveFormat, absDestDir string, writes *WriteLog) (err error) {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var r io.Reader = f
	switch format {
	case ArchiveTarGz:
		gz, gzErr := gzip.NewReader(f)
		if gzErr != nil {
			return fmt.Errorf("failed to open gzip stream: %w", gzErr)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case ArchiveTarZst:
		zr, zErr := zstd.NewReader(f)
		if zErr != nil {
			return fmt.Errorf("failed to open zstd stream: %w", zErr)
		}
		defer zr.Close()
		r = zr
	}
	return extractTar(r, absDestDir, writes)
}

func extractTar(r io.Reader, absDestDir string, writes *WriteLog) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		destPath, err := archiveDest(absDestDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeArchiveFile(tr, destPath, hdr.FileInfo().Mode()); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
			writes.Record(destPath, WriteExtract)
		default:
			// links and devices are not extracted
		}
	}
}

// archiveDest joins name to absDestDir and rejects paths that leave it.
func archiveDest(absDestDir, name string) (string, error) {
	destPath := filepath.Join(absDestDir, filepath.FromSlash(name))
	relPath, err := filepath.Rel(absDestDir, destPath)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path in archive: %s", name)
	}
	return destPath, nil
}

func writeArchiveFile(src io.Reader, destPath string, mode os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(dst, src)
	return err
}
