package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/sakif/choirhub/internal/apperror"
)

// Local stores objects as files under a root directory.
//
// All file access goes through an os.Root, so a key can never reach outside
// the directory even through a symlink.
type Local struct {
	root *os.Root
}

var _ Storage = (*Local)(nil)

// NewLocal opens (creating if needed) the directory dir as a storage root.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", dir, err)
	}
	return &Local{root: root}, nil
}

// Close releases the root directory handle.
func (l *Local) Close() error {
	return l.root.Close()
}

// Save writes r to key, creating parent directories. A partial file is
// removed if the copy fails.
func (l *Local) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) (int64, error) {
	clean, ok := CleanKey(key)
	if !ok {
		return 0, apperror.ValidationFailed("path", "invalid storage path")
	}

	if dir := path.Dir(clean); dir != "." {
		if err := l.root.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("storage: creating directory for %s: %w", clean, err)
		}
	}

	f, err := l.root.OpenFile(clean, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("storage: creating %s: %w", clean, err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = l.root.Remove(clean)
		return 0, fmt.Errorf("storage: writing %s: %w", clean, err)
	}
	return n, nil
}

// Open returns the file at key.
func (l *Local) Open(_ context.Context, key string) (*Object, error) {
	clean, ok := CleanKey(key)
	if !ok {
		return nil, apperror.FileNotFound()
	}

	f, err := l.root.Open(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.FileNotFound()
		}
		return nil, fmt.Errorf("storage: opening %s: %w", clean, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", clean, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, apperror.FileNotFound()
	}

	return &Object{ReadSeekCloser: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete removes the file at key.
func (l *Local) Delete(_ context.Context, key string) error {
	clean, ok := CleanKey(key)
	if !ok {
		return nil
	}
	if err := l.root.Remove(clean); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: removing %s: %w", clean, err)
	}
	return nil
}
