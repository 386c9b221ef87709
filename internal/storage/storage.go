// Package storage owns the recordings directory: it is the only component
// that creates, lists, copies and deletes clip files.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound reports that a clip file is absent from the directory.
var ErrNotFound = errors.New("clip file not found")

// Store manages a single recordings directory holding one file per clip.
type Store struct {
	dir string
	ext string // clip extension, lower case, without leading dot
}

// New creates a Store for the given directory and clip extension. The
// extension is normalized so listing matches it case-insensitively.
func New(dir, ext string) *Store {
	return &Store{dir: dir, ext: strings.ToLower(strings.TrimPrefix(ext, "."))}
}

// Directory returns the managed directory path.
func (s *Store) Directory() string {
	return s.dir
}

// Extension returns the clip extension without the leading dot.
func (s *Store) Extension() string {
	return s.ext
}

// EnsureDirectory creates the recordings directory if it does not exist.
// Idempotent.
func (s *Store) EnsureDirectory() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return nil
}

// ListClips performs a fresh full read of the directory and returns the names
// of regular files carrying the clip extension. Every call re-scans; there is
// no watching or incremental update.
func (s *Store) ListClips() ([]string, error) {
	if err := s.EnsureDirectory(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != "."+s.ext {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// Path returns the absolute path of a clip file inside the directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Validate checks that path refers to an existing, non-empty regular file.
func (s *Store) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to stat clip file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("clip path is a directory: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("clip file is empty: %s", path)
	}
	return nil
}

// Commit copies a temporary capture into the directory under name and
// confirms the copy landed before returning the final path.
func (s *Store) Commit(tmpPath, name string) (string, error) {
	if err := s.EnsureDirectory(); err != nil {
		return "", err
	}

	dest := s.Path(name)
	if err := copyFile(tmpPath, dest); err != nil {
		return "", fmt.Errorf("failed to copy capture into recordings directory: %w", err)
	}

	if err := s.Validate(dest); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("committed clip failed verification: %w", err)
	}

	slog.Debug("Clip committed to storage", "name", name, "path", dest)
	return dest, nil
}

// Remove deletes a clip file. Returns ErrNotFound if the file is absent.
func (s *Store) Remove(name string) error {
	path := s.Path(name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete clip file: %w", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}

	return out.Close()
}
