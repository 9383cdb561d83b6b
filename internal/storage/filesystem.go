package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// A Filesystem stores attachment bytes under <root>/attachments/<slug>/.
// Bytes are written as given, never encrypted by the backend itself.
type Filesystem struct {
	root string
}

// NewFilesystem returns a local filesystem backend rooted at the data dir.
func NewFilesystem(root string) *Filesystem {
	return &Filesystem{root: root}
}

func (f *Filesystem) dir(slug string) string {
	return filepath.Join(f.root, attachmentsDir, slug)
}

// Save implements Backend.
func (f *Filesystem) Save(_ context.Context, slug string, locator Locator, data []byte) error {
	dir := f.dir(slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(ErrUnavailable, "create %s: %s", dir, err)
	}

	filename := filepath.Join(dir, locator.PhysicalName())
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return errors.Wrapf(ErrUnavailable, "write %s: %s", filename, err)
	}
	return nil
}

// Get implements Backend.
func (f *Filesystem) Get(_ context.Context, slug string, locator Locator) ([]byte, error) {
	filename := filepath.Join(f.dir(slug), locator.PhysicalName())

	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "%s", filename)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "read %s: %s", filename, err)
	}
	return data, nil
}

// Delete implements Backend. It also removes the paste's now-empty
// attachment directory, best effort.
func (f *Filesystem) Delete(_ context.Context, slug string, locator Locator) error {
	filename := filepath.Join(f.dir(slug), locator.PhysicalName())

	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(ErrUnavailable, "remove %s: %s", filename, err)
	}

	os.Remove(f.dir(slug)) // fails when not empty, which is fine
	return nil
}
