package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrFilesClosed is returned for appends after CloseFiles.
var ErrFilesClosed = errors.New("transcript files closed")

// TranscriptFiles is a pair of append-only text sinks, one per language code,
// created fresh (truncated) at session start and held open for the session's
// full duration.
type TranscriptFiles struct {
	mu     sync.Mutex
	files  map[string]*os.File
	paths  map[string]string
	closed bool
}

// CreateFiles truncate-creates `{sessionName}-{lang}.txt` for each language
// under dir.
func CreateFiles(dir, sessionName string, langs ...string) (*TranscriptFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}

	t := &TranscriptFiles{
		files: make(map[string]*os.File, len(langs)),
		paths: make(map[string]string, len(langs)),
	}

	for _, lang := range langs {
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.txt", sessionName, lang))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			_ = t.Discard()
			return nil, fmt.Errorf("create transcript file %s: %w", path, err)
		}
		t.files[lang] = f
		t.paths[lang] = path
	}
	return t, nil
}

// Append writes text plus a newline, UTF-8, to the sink for lang.
func (t *TranscriptFiles) Append(lang, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrFilesClosed
	}
	f, ok := t.files[lang]
	if !ok {
		return fmt.Errorf("no transcript file for language %q", lang)
	}
	if _, err := fmt.Fprintln(f, text); err != nil {
		return fmt.Errorf("append to %s transcript: %w", lang, err)
	}
	return nil
}

// CloseFiles flushes and releases both handles. No writes are accepted after.
func (t *TranscriptFiles) CloseFiles() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var firstErr error
	for lang, f := range t.files {
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush %s transcript: %w", lang, err)
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s transcript: %w", lang, err)
		}
	}
	return firstErr
}

// Discard closes and removes the files. Used when a session produced no
// content, so empty artifacts do not litter the output folder.
func (t *TranscriptFiles) Discard() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	var firstErr error
	for _, f := range t.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, path := range t.paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Paths returns the transcript file paths, for backup sync.
func (t *TranscriptFiles) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.paths))
	for _, path := range t.paths {
		out = append(out, path)
	}
	return out
}
