package hashstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/pagewatch/tracker/snapshot"
)

// File stores the fingerprint as the sole content of a text file.
type File struct {
	path string
}

// NewFile returns a File store at path. The file is created on first Save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Load reads the stored fingerprint. A missing file is not an error.
func (f *File) Load(_ context.Context) (snapshot.Fingerprint, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("hashstore: read %s: %w", f.path, err)
	}
	return snapshot.Fingerprint(strings.TrimSpace(string(data))), nil
}

// Save replaces the stored fingerprint. The write goes through a temp file
// and a rename so a crash never leaves a truncated digest behind.
func (f *File) Save(_ context.Context, fp snapshot.Fingerprint) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("hashstore: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".hash-*")
	if err != nil {
		return fmt.Errorf("hashstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(string(fp)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("hashstore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("hashstore: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("hashstore: rename: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }
