package model

import "github.com/pkg/errors"

// A Privacy describes how a paste's content is protected. It is chosen at
// creation and never changes afterwards.
type Privacy string

const (
	// PrivacyPublic is a cleartext paste anyone can read.
	PrivacyPublic Privacy = "public"
	// PrivacyReadonly is a cleartext paste whose deletion requires proving
	// knowledge of the creation passphrase.
	PrivacyReadonly Privacy = "readonly"
	// PrivacyPrivate is encrypted at rest under a server passphrase supplied
	// again at every read.
	PrivacyPrivate Privacy = "private"
	// PrivacySecret is encrypted at rest under a client-held key the server
	// never persists nor logs.
	PrivacySecret Privacy = "secret"
)

// ParsePrivacy validates the given privacy mode.
func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(s); p {
	case PrivacyPublic, PrivacyReadonly, PrivacyPrivate, PrivacySecret:
		return p, nil
	}
	return "", errors.Errorf("unknown privacy mode %q", s)
}

// EncryptedAtRest returns true when the paste's content and file bytes are
// stored as ciphertext.
func (p Privacy) EncryptedAtRest() bool {
	return p == PrivacyPrivate || p == PrivacySecret
}

// ClientKeyed returns true when the encryption key is held by the client
// instead of being a server passphrase.
func (p Privacy) ClientKeyed() bool {
	return p == PrivacySecret
}
