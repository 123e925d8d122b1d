package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateFilesTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meeting-en.txt")
	if err := os.WriteFile(path, []byte("stale content\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	files, err := CreateFiles(dir, "meeting", "en", "es")
	if err != nil {
		t.Fatalf("CreateFiles failed: %v", err)
	}
	defer func() { _ = files.CloseFiles() }()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected truncated file, got %q", data)
	}
}

func TestAppendAndClose(t *testing.T) {
	dir := t.TempDir()
	files, err := CreateFiles(dir, "meeting", "en", "es")
	if err != nil {
		t.Fatalf("CreateFiles failed: %v", err)
	}

	if err := files.Append("en", "Hello"); err != nil {
		t.Fatalf("Append en failed: %v", err)
	}
	if err := files.Append("es", "Hola"); err != nil {
		t.Fatalf("Append es failed: %v", err)
	}
	if err := files.CloseFiles(); err != nil {
		t.Fatalf("CloseFiles failed: %v", err)
	}

	en, err := os.ReadFile(filepath.Join(dir, "meeting-en.txt"))
	if err != nil {
		t.Fatalf("read en file: %v", err)
	}
	if string(en) != "Hello\n" {
		t.Errorf("expected %q, got %q", "Hello\n", en)
	}

	es, err := os.ReadFile(filepath.Join(dir, "meeting-es.txt"))
	if err != nil {
		t.Fatalf("read es file: %v", err)
	}
	if string(es) != "Hola\n" {
		t.Errorf("expected %q, got %q", "Hola\n", es)
	}
}

func TestAppendAfterCloseRejected(t *testing.T) {
	files, err := CreateFiles(t.TempDir(), "meeting", "en", "es")
	if err != nil {
		t.Fatalf("CreateFiles failed: %v", err)
	}
	if err := files.CloseFiles(); err != nil {
		t.Fatalf("CloseFiles failed: %v", err)
	}

	if err := files.Append("en", "too late"); !errors.Is(err, ErrFilesClosed) {
		t.Fatalf("expected ErrFilesClosed, got %v", err)
	}

	// Second close is a no-op.
	if err := files.CloseFiles(); err != nil {
		t.Errorf("repeated CloseFiles failed: %v", err)
	}
}

func TestAppendUnknownLanguage(t *testing.T) {
	files, err := CreateFiles(t.TempDir(), "meeting", "en", "es")
	if err != nil {
		t.Fatalf("CreateFiles failed: %v", err)
	}
	defer func() { _ = files.CloseFiles() }()

	if err := files.Append("fr", "bonjour"); err == nil {
		t.Fatal("expected error for unknown language key")
	}
}

func TestDiscardRemovesArtifacts(t *testing.T) {
	dir := t.TempDir()
	files, err := CreateFiles(dir, "meeting", "en", "es")
	if err != nil {
		t.Fatalf("CreateFiles failed: %v", err)
	}

	if err := files.Discard(); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no file artifacts after discard, found %d", len(entries))
	}
}
