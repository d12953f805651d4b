package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ThalitaPinheiro/defacto/internal/spec"
)

// FileBackend stores the document as indented JSON in a single file.
type FileBackend struct {
	Path string
}

// NewFile returns a FileBackend for path, creating parent directories.
func NewFile(path string) (*FileBackend, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("store: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("store: create parent directory: %w", err)
	}
	return &FileBackend{Path: abs}, nil
}

func (f *FileBackend) Load() (*spec.Document, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", f.Path, err)
	}
	return spec.Parse(raw, f.Path)
}

func (f *FileBackend) Save(doc *spec.Document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("store: encode document: %w", err)
	}
	data = append(data, '\n')

	// Atomic write via temp + rename
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("store: place file at %s: %w", f.Path, err)
	}
	return nil
}

func (f *FileBackend) Close() error { return nil }
