package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileDestination writes JSONL data to a local file, replacing it
// atomically.
type FileDestination struct {
	path string
}

func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

// Write writes data to a temporary file next to the target and renames it
// into place.
func (d *FileDestination) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// WriterDestination copies JSONL data to a writer such as stdout.
type WriterDestination struct {
	W io.Writer
}

func (d WriterDestination) Write(_ context.Context, data []byte) error {
	_, err := d.W.Write(data)
	return err
}
