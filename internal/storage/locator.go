// Package storage stores, fetches and deletes the attachment bytes of a
// paste, either on the local filesystem or in an S3-compatible bucket.
//
// Where and how the bytes live is described by a Locator. For backward
// compatibility with existing attachment layouts, a locator serializes to a
// single string:
//
//	s3://attachments/<slug>/<name>  cleartext bytes in object storage
//	s3:<name>                       ciphertext in object storage, stored as data.enc
//	<name> (paste encrypted)        ciphertext on disk, stored as data.enc
//	<name> (paste cleartext)        cleartext bytes on disk under <name>
//
// The two local forms are indistinguishable from the string alone, so parsing
// takes the paste's encryption state as side information.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// EncryptedName is the fixed physical filename of encrypted attachments.
const EncryptedName = "data.enc"

const attachmentsDir = "attachments"

// Codec errors.
var (
	ErrMalformedLocator = errors.New("malformed locator")
	ErrUnsafeFilename   = errors.New("unsafe filename")
)

type kind uint8

const (
	kindLocal kind = iota
	kindLocalEncrypted
	kindS3
	kindS3Encrypted
)

// A Locator names the backend holding a file's bytes, whether they are
// encrypted, and the original filename.
type Locator struct {
	kind kind
	name string // display name
	path string // object path, only for cleartext S3 files
}

// LocalLocator points at cleartext bytes stored on disk under the given name.
func LocalLocator(name string) Locator {
	return Locator{kind: kindLocal, name: name}
}

// LocalEncryptedLocator points at ciphertext stored on disk as data.enc.
// The name is retained for display purposes only.
func LocalEncryptedLocator(name string) Locator {
	return Locator{kind: kindLocalEncrypted, name: name}
}

// S3Locator points at cleartext bytes stored in the bucket under the paste's
// attachment prefix.
func S3Locator(slug, name string) Locator {
	return Locator{
		kind: kindS3,
		name: name,
		path: attachmentsDir + "/" + slug + "/" + name,
	}
}

// S3EncryptedLocator points at ciphertext stored in the bucket as data.enc.
func S3EncryptedLocator(name string) Locator {
	return Locator{kind: kindS3Encrypted, name: name}
}

// Parse decodes the legacy string form. The order of the checks matters:
// "s3:" is a prefix of "s3://" so the cleartext S3 form has priority.
func Parse(raw string, encrypted bool) (Locator, error) {
	switch {
	case strings.HasPrefix(raw, "s3://"):
		path := strings.TrimPrefix(raw, "s3://")
		i := strings.LastIndex(path, "/")
		if path == "" || i == len(path)-1 {
			return Locator{}, errors.Wrapf(ErrMalformedLocator, "%q", raw)
		}
		return Locator{kind: kindS3, name: path[i+1:], path: path}, nil
	case strings.HasPrefix(raw, "s3:"):
		name := strings.TrimPrefix(raw, "s3:")
		if name == "" {
			return Locator{}, errors.Wrapf(ErrMalformedLocator, "%q", raw)
		}
		return Locator{kind: kindS3Encrypted, name: name}, nil
	case raw == "":
		return Locator{}, errors.Wrapf(ErrMalformedLocator, "%q", raw)
	case encrypted:
		return Locator{kind: kindLocalEncrypted, name: raw}, nil
	default:
		return Locator{kind: kindLocal, name: raw}, nil
	}
}

// String encodes the locator into its legacy string form, the one stored in
// the durable index.
func (l Locator) String() string {
	switch l.kind {
	case kindS3:
		return "s3://" + l.path
	case kindS3Encrypted:
		return "s3:" + l.name
	default:
		return l.name
	}
}

// IsS3 returns true for cleartext bytes living in object storage.
func (l Locator) IsS3() bool {
	return l.kind == kindS3
}

// IsS3Encrypted returns true for ciphertext living in object storage.
func (l Locator) IsS3Encrypted() bool {
	return l.kind == kindS3Encrypted
}

// Encrypted returns true when the physical bytes are ciphertext.
func (l Locator) Encrypted() bool {
	return l.kind == kindLocalEncrypted || l.kind == kindS3Encrypted
}

// DisplayName returns the human filename, used for Content-Disposition.
func (l Locator) DisplayName() string {
	return l.name
}

// PhysicalName returns the filename holding the actual bytes.
func (l Locator) PhysicalName() string {
	if l.Encrypted() {
		return EncryptedName
	}
	return l.name
}

// ObjectKey returns the bucket key for S3-backed locators.
func (l Locator) ObjectKey(slug string) string {
	if l.kind == kindS3 {
		return l.path
	}
	return attachmentsDir + "/" + slug + "/" + l.PhysicalName()
}

var embeddableExtensions = map[string]bool{
	// images
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".webp": true, ".ico": true, ".svg": true, ".tiff": true, ".tif": true,
	".jfif": true, ".pjpeg": true, ".pjp": true, ".avif": true, ".jxl": true,
	".heif": true,
	// videos
	".mp4": true, ".mov": true, ".wmv": true, ".webm": true, ".avi": true,
	".flv": true, ".mkv": true, ".mts": true,
}

// Embeddable returns true when the display name carries a known image or
// video extension. Pure extension lookup, no content sniffing.
func (l Locator) Embeddable() bool {
	return embeddableExtensions[strings.ToLower(filepath.Ext(l.name))]
}

// SanitizeFilename extracts a safe filename from an untrusted upload path.
func SanitizeFilename(path string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(path, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")

	if name == "" || name == "." || name == ".." || name == "/" {
		return "", errors.Wrapf(ErrUnsafeFilename, "%q", path)
	}

	// A leading "s3:" would collide with the encoded object-store forms and
	// re-parse as an S3 reference.
	if strings.HasPrefix(name, "s3:") {
		name = "s3_" + strings.TrimPrefix(name, "s3:")
	}
	return name, nil
}
