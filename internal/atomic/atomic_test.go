package atomic

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "target.json")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading target: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("target content = %q, want %q", data, "hello")
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestWriterCommitReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.json")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	w.Write([]byte("new"))
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("target content = %q, want %q", data, "new")
	}
}

func TestWriterAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.json")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	w.Write([]byte("partial"))
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("target exists after abort")
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

// assertNoTempFiles checks that no temp files leaked into dir.
func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".yark-") {
			t.Errorf("temp file %s left behind", entry.Name())
		}
	}
}
