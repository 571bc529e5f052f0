package matchup

import (
	"context"
	"io"
)

// ClipStore is a key-value store for encoded clips. Put, Get and Delete are
// atomic per key. Payloads may be tens of megabytes.
type ClipStore interface {
	// Put stores clip under key, replacing any previous value.
	Put(ctx context.Context, key string, clip *StoredClip) error

	// Get returns the clip stored under key, or (nil, nil) if there is none.
	Get(ctx context.Context, key string) (*StoredClip, error)

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// ListKeys returns every stored key in ascending order.
	ListKeys(ctx context.Context) ([]string, error)
}

// Encryptor handles encryption of clip payloads and unlocking for decryption.
// Encryption uses the public key only; decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext for the session.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `matchup keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the duration
// of a session. The unlocked key is never written to disk.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
