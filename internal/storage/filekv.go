package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileKV stores each key as one file under its root directory.
//
// Writes are atomic: the value goes to a temp file in the same directory,
// which is then renamed over the target with 0600 permissions, so a crash
// mid-write never leaves a truncated collection behind.
type FileKV struct {
	root string
}

// NewFileKV creates the root directory if needed and returns the backend.
func NewFileKV(root string) (*FileKV, error) {
	if root == "" {
		return nil, errors.New("storage: data directory is empty")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &FileKV{root: root}, nil
}

func (f *FileKV) Get(key string) (string, bool, error) {
	path, err := f.pathFor(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("storage: %w", err)
	}
	return string(data), true, nil
}

func (f *FileKV) Set(key, value string) error {
	path, err := f.pathFor(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".simplecal-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func (f *FileKV) Close() error { return nil }

// pathFor rejects keys that could escape the root directory. Keys are
// internal constants, so this only guards against programming mistakes.
func (f *FileKV) pathFor(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(f.root, key+".json"), nil
}
