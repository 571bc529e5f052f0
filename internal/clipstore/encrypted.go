package clipstore

import (
	"bytes"
	"context"
	"fmt"

	"matchup-go/internal/matchup"
)

// EncryptedStore encrypts clip bytes before handing them to an inner store.
// Writes only need the public key. Reads need a DecryptionContext from
// Unlock; a store without one is write-only.
type EncryptedStore struct {
	inner matchup.ClipStore
	enc   matchup.Encryptor
	dec   matchup.DecryptionContext
}

// NewEncryptedStore wraps inner. dec may be nil.
func NewEncryptedStore(inner matchup.ClipStore, enc matchup.Encryptor, dec matchup.DecryptionContext) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc, dec: dec}
}

// Unlocked returns a copy of the store that can decrypt.
func (s *EncryptedStore) Unlocked(dec matchup.DecryptionContext) *EncryptedStore {
	return &EncryptedStore{inner: s.inner, enc: s.enc, dec: dec}
}

func (s *EncryptedStore) Put(ctx context.Context, key string, clip *matchup.StoredClip) error {
	var buf bytes.Buffer
	if err := s.enc.Encrypt(bytes.NewReader(clip.Data), &buf); err != nil {
		return fmt.Errorf("encrypting clip %s: %w", key, err)
	}
	return s.inner.Put(ctx, key, &matchup.StoredClip{
		MimeType:  clip.MimeType,
		CreatedAt: clip.CreatedAt,
		Data:      buf.Bytes(),
	})
}

func (s *EncryptedStore) Get(ctx context.Context, key string) (*matchup.StoredClip, error) {
	if s.dec == nil {
		return nil, fmt.Errorf("clip store is locked: unlock with the encryption passphrase to read %s", key)
	}
	stored, err := s.inner.Get(ctx, key)
	if err != nil || stored == nil {
		return stored, err
	}

	var buf bytes.Buffer
	if err := s.dec.Decrypt(bytes.NewReader(stored.Data), &buf); err != nil {
		return nil, fmt.Errorf("decrypting clip %s: %w", key, err)
	}
	return &matchup.StoredClip{MimeType: stored.MimeType, CreatedAt: stored.CreatedAt, Data: buf.Bytes()}, nil
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.inner.Delete(ctx, key)
}

func (s *EncryptedStore) ListKeys(ctx context.Context) ([]string, error) {
	return s.inner.ListKeys(ctx)
}

var _ matchup.ClipStore = (*EncryptedStore)(nil)
