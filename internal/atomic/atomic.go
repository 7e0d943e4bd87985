// Package atomic provides crash-safe file write primitives for the archive.
package atomic

import (
	"fmt"
	"os"
	"path/filepath"
)

// Writer writes a file via a temp file in the same directory plus rename,
// so the target is never left partially written.
type Writer struct {
	path    string
	tmpPath string
	file    *os.File
}

// NewWriter creates a writer for atomically replacing path. The parent
// directory is created if missing.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".yark-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &Writer{
		path:    path,
		tmpPath: tmpFile.Name(),
		file:    tmpFile,
	}, nil
}

// Write writes data to the temporary file.
func (w *Writer) Write(p []byte) (n int, err error) {
	return w.file.Write(p)
}

// Commit syncs the temporary file to disk and renames it over the target.
func (w *Writer) Commit() error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath) // Best effort cleanup
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Abort discards the temporary file without committing.
func (w *Writer) Abort() error {
	w.file.Close()
	return os.Remove(w.tmpPath)
}
