package storage

import (
	"context"

	"github.com/pkg/errors"
)

// Backend errors. Callers react differently to the two kinds: not-found may
// just mean the bytes are already reclaimed, unavailable should be surfaced
// to the operator.
var (
	ErrNotFound    = errors.New("file not found")
	ErrUnavailable = errors.New("storage backend unavailable")
)

// A Backend saves, fetches and deletes attachment bytes. Encryption is the
// caller's responsibility: payloads are written exactly as given.
type Backend interface {
	// Save writes the bytes designated by the locator, creating any missing
	// parent directory.
	Save(ctx context.Context, slug string, locator Locator, data []byte) error
	// Get reads back the bytes designated by the locator.
	Get(ctx context.Context, slug string, locator Locator) ([]byte, error)
	// Delete removes the bytes designated by the locator. Deleting already
	// missing bytes is not an error.
	Delete(ctx context.Context, slug string, locator Locator) error
}

// A Dispatcher routes each operation to the filesystem or to the object
// store depending on the locator's shape.
type Dispatcher struct {
	local *Filesystem
	s3    *S3
}

// NewDispatcher returns a backend routing S3-tagged locators to s3.
// s3 may be nil when object storage is not configured; S3-tagged locators
// then fail with ErrUnavailable.
func NewDispatcher(local *Filesystem, s3 *S3) *Dispatcher {
	return &Dispatcher{local: local, s3: s3}
}

func (d *Dispatcher) route(locator Locator) (Backend, error) {
	if locator.IsS3() || locator.IsS3Encrypted() {
		if d.s3 == nil {
			return nil, errors.Wrap(ErrUnavailable, "object storage is not configured")
		}
		return d.s3, nil
	}
	return d.local, nil
}

// Save implements Backend.
func (d *Dispatcher) Save(ctx context.Context, slug string, locator Locator, data []byte) error {
	backend, err := d.route(locator)
	if err != nil {
		return err
	}
	return backend.Save(ctx, slug, locator, data)
}

// Get implements Backend.
func (d *Dispatcher) Get(ctx context.Context, slug string, locator Locator) ([]byte, error) {
	backend, err := d.route(locator)
	if err != nil {
		return nil, err
	}
	return backend.Get(ctx, slug, locator)
}

// Delete implements Backend.
func (d *Dispatcher) Delete(ctx context.Context, slug string, locator Locator) error {
	backend, err := d.route(locator)
	if err != nil {
		return err
	}
	return backend.Delete(ctx, slug, locator)
}

// S3Enabled returns true when an object store is configured, which makes it
// the target of new attachments.
func (d *Dispatcher) S3Enabled() bool {
	return d.s3 != nil
}
