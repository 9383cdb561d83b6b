// Package crypt implements the symmetric encryption used for paste contents
// and file payloads. Any string is an acceptable key, including the empty
// string; enforcing a non-empty passphrase is the caller's contract.
package crypt

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt is returned for a wrong key as well as corrupted or truncated
// ciphertext. A single error kind avoids giving callers an oracle that
// distinguishes the two cases.
var ErrDecrypt = errors.New("could not decrypt payload")

const saltSize = 16

func derive(key string, salt []byte) []byte {
	return argon2.IDKey([]byte(key), salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}

// EncryptBytes encrypts the given payload with a key derived from the passphrase.
// The returned blob is salt || nonce || ciphertext.
func EncryptBytes(payload []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "could not generate salt")
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "could not generate nonce")
	}

	aead, err := chacha20poly1305.NewX(derive(passphrase, salt))
	if err != nil {
		return nil, errors.Wrap(err, "could not create cipher")
	}

	blob := make([]byte, 0, saltSize+chacha20poly1305.NonceSizeX+len(payload)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, payload, nil), nil
}

// DecryptBytes decrypts a blob produced by EncryptBytes.
// It fails with ErrDecrypt whatever the reason is.
func DecryptBytes(blob []byte, passphrase string) ([]byte, error) {
	if len(blob) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, ErrDecrypt
	}

	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := blob[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(derive(passphrase, salt))
	if err != nil {
		return nil, ErrDecrypt
	}

	payload, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return payload, nil
}

// Encrypt encrypts the given text and returns it as a base64 string.
// The empty string maps to the empty string so an empty content never leaks
// a fixed-size ciphertext.
func Encrypt(text, passphrase string) (string, error) {
	if text == "" {
		return "", nil
	}

	blob, err := EncryptBytes([]byte(text), passphrase)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt decrypts a base64 string produced by Encrypt.
// Malformed base64 fails with ErrDecrypt like any other corruption.
func Decrypt(text, passphrase string) (string, error) {
	if text == "" {
		return "", nil
	}

	blob, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", ErrDecrypt
	}

	payload, err := DecryptBytes(blob, passphrase)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
