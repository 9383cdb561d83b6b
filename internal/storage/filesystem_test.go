package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mdouchement/pastry/internal/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFilesystem_SaveGetDelete(t *testing.T) {
	root := t.TempDir()
	backend := storage.NewFilesystem(root)
	ctx := context.Background()

	locator := storage.LocalLocator("notes.txt")
	payload := []byte("attachment payload")

	assert.NoError(t, backend.Save(ctx, "cat-dog", locator, payload))
	assert.FileExists(t, filepath.Join(root, "attachments", "cat-dog", "notes.txt"))

	data, err := backend.Get(ctx, "cat-dog", locator)
	assert.NoError(t, err)
	assert.Equal(t, payload, data)

	assert.NoError(t, backend.Delete(ctx, "cat-dog", locator))

	// The now-empty per-paste directory is removed as well.
	_, err = os.Stat(filepath.Join(root, "attachments", "cat-dog"))
	assert.True(t, os.IsNotExist(err))
}

func TestFilesystem_EncryptedPhysicalName(t *testing.T) {
	root := t.TempDir()
	backend := storage.NewFilesystem(root)
	ctx := context.Background()

	locator := storage.LocalEncryptedLocator("report.pdf")
	assert.NoError(t, backend.Save(ctx, "cat-dog", locator, []byte("ciphertext")))

	// Bytes live under the fixed encrypted name, not the display name.
	assert.FileExists(t, filepath.Join(root, "attachments", "cat-dog", "data.enc"))
	assert.NoFileExists(t, filepath.Join(root, "attachments", "cat-dog", "report.pdf"))
}

func TestFilesystem_GetNotFound(t *testing.T) {
	backend := storage.NewFilesystem(t.TempDir())

	_, err := backend.Get(context.Background(), "cat-dog", storage.LocalLocator("nope.txt"))
	assert.Equal(t, storage.ErrNotFound, errors.Cause(err))
}

func TestFilesystem_DeleteMissingIsFine(t *testing.T) {
	backend := storage.NewFilesystem(t.TempDir())

	err := backend.Delete(context.Background(), "cat-dog", storage.LocalLocator("nope.txt"))
	assert.NoError(t, err)
}

func TestFilesystem_DeleteKeepsNonEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	backend := storage.NewFilesystem(root)
	ctx := context.Background()

	assert.NoError(t, backend.Save(ctx, "cat-dog", storage.LocalLocator("one.txt"), []byte("1")))
	assert.NoError(t, backend.Save(ctx, "cat-dog", storage.LocalLocator("two.txt"), []byte("2")))

	assert.NoError(t, backend.Delete(ctx, "cat-dog", storage.LocalLocator("one.txt")))
	assert.FileExists(t, filepath.Join(root, "attachments", "cat-dog", "two.txt"))
}

func TestDispatcher_S3Unconfigured(t *testing.T) {
	dispatcher := storage.NewDispatcher(storage.NewFilesystem(t.TempDir()), nil)
	assert.False(t, dispatcher.S3Enabled())

	_, err := dispatcher.Get(context.Background(), "cat-dog", storage.S3Locator("cat-dog", "photo.jpg"))
	assert.Equal(t, storage.ErrUnavailable, errors.Cause(err))

	// Local locators still route to the filesystem.
	err = dispatcher.Save(context.Background(), "cat-dog", storage.LocalLocator("notes.txt"), []byte("ok"))
	assert.NoError(t, err)
}

func TestS3Config_Complete(t *testing.T) {
	cfg := storage.S3Config{
		Region:    "us-east-1",
		Endpoint:  "http://localhost:9000",
		Bucket:    "pastry",
		AccessKey: "ak",
		SecretKey: "sk",
	}
	assert.True(t, cfg.Complete())

	cfg.Bucket = ""
	assert.False(t, cfg.Complete())
}
