package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]*$`)

// FileSystemBackend stores one file per photo id in a flat directory.
type FileSystemBackend struct {
	root string
}

// NewFileSystem creates root if needed and returns a backend over it.
func NewFileSystem(root string) (*FileSystemBackend, error) {
	if root == "" {
		return nil, errors.New("filesystem blob backend requires a directory")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FileSystemBackend{root: root}, nil
}

func (f *FileSystemBackend) path(id string) (string, error) {
	if !validID.MatchString(id) {
		return "", fmt.Errorf("invalid blob id %q", id)
	}
	return filepath.Join(f.root, id), nil
}

// Put writes data atomically (temp file + rename).
func (f *FileSystemBackend) Put(_ context.Context, id string, data []byte) error {
	dest, err := f.path(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

func (f *FileSystemBackend) Get(_ context.Context, id string) ([]byte, error) {
	p, err := f.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blob file: %w", err)
	}
	return data, nil
}

func (f *FileSystemBackend) Delete(_ context.Context, id string) error {
	p, err := f.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove blob file: %w", err)
	}
	return nil
}

// IDs lists stored ids, skipping in-flight temp files.
func (f *FileSystemBackend) IDs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("read blob directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

var (
	_ Backend = (*FileSystemBackend)(nil)
	_ Lister  = (*FileSystemBackend)(nil)
)
