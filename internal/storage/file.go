package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileDriver stores payloads on a mounted filesystem under a fixed root.
type FileDriver struct {
	root string
}

// NewFileDriver creates a FileDriver rooted at root. The root itself is
// created lazily on first write.
func NewFileDriver(root string) (*FileDriver, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: file root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &FileDriver{root: abs}, nil
}

func (d *FileDriver) path(key Key) string {
	return filepath.Join(d.root, filepath.FromSlash(key.String()))
}

// Write stores the payload bytes verbatim. Directories are created on demand;
// MkdirAll succeeds when another writer created them first, so sibling steps
// can write concurrently without coordination.
func (d *FileDriver) Write(_ context.Context, key Key, payload Payload) error {
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	data := payload.Data
	if data == nil {
		data = []byte{}
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

func (d *FileDriver) Read(_ context.Context, key Key) (Payload, error) {
	b, err := os.ReadFile(d.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Payload{}, ErrNotFound
		}
		return Payload{}, &ReadError{Key: key, Err: err}
	}
	return Bytes(b), nil
}

func (d *FileDriver) Exists(_ context.Context, key Key) (bool, error) {
	info, err := os.Stat(d.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &ReadError{Key: key, Err: err}
	}
	return !info.IsDir(), nil
}

func (d *FileDriver) List(_ context.Context, runID, stepID string) ([]string, error) {
	if err := checkIdentifier("run", runID); err != nil {
		return nil, err
	}
	if err := checkIdentifier("step", stepID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(d.root, runID, stepID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &ReadError{Key: Key{RunID: runID, StepID: stepID}, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Location returns the absolute filesystem path for key.
func (d *FileDriver) Location(key Key) string {
	return d.path(key)
}
