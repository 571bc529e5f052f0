package testutil

import (
	"matchup-go/internal/clipstore"
	"matchup-go/internal/encryption"
)

// NewTestStore creates an empty in-memory clip store.
func NewTestStore() *clipstore.MemoryStore {
	return clipstore.NewMemoryStore()
}

// NewSealedTestStore wraps inner with the deterministic test encryptor,
// already unlocked.
func NewSealedTestStore(inner *clipstore.MemoryStore) *clipstore.EncryptedStore {
	enc := encryption.NewTestEncryptor()
	dec, _ := enc.Unlock("")
	return clipstore.NewEncryptedStore(inner, enc, dec)
}
