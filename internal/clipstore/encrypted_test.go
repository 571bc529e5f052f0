package clipstore

import (
	"bytes"
	"context"
	"testing"

	"matchup-go/internal/encryption"
	"matchup-go/internal/matchup"
)

func TestEncryptedStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) matchup.ClipStore {
		enc := encryption.NewTestEncryptor()
		dec, err := enc.Unlock("")
		if err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		return NewEncryptedStore(NewMemoryStore(), enc, dec)
	})
}

func TestEncryptedStore_InnerHoldsCiphertext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s := NewEncryptedStore(inner, encryption.NewTestEncryptor(), nil)

	if err := s.Put(ctx, "swing-1", testClip("plain frames")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	raw, err := inner.Get(ctx, "swing-1")
	if err != nil || raw == nil {
		t.Fatalf("inner Get() = %v, %v", raw, err)
	}
	if bytes.Contains(raw.Data, []byte("plain frames")) {
		t.Error("inner store holds plaintext")
	}
	if raw.MimeType != "video/mp4" {
		t.Errorf("MimeType = %q, want it kept in the clear", raw.MimeType)
	}
}

func TestEncryptedStore_LockedReads(t *testing.T) {
	ctx := context.Background()
	enc := encryption.NewTestEncryptor()
	locked := NewEncryptedStore(NewMemoryStore(), enc, nil)

	if err := locked.Put(ctx, "pitch-1", testClip("data")); err != nil {
		t.Fatalf("Put() on locked store error = %v", err)
	}
	if _, err := locked.Get(ctx, "pitch-1"); err == nil {
		t.Fatal("Get() on locked store should fail")
	}
	keys, err := locked.ListKeys(ctx)
	if err != nil || len(keys) != 1 {
		t.Errorf("ListKeys() on locked store = %v, %v", keys, err)
	}

	dec, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	got, err := locked.Unlocked(dec).Get(ctx, "pitch-1")
	if err != nil || got == nil {
		t.Fatalf("unlocked Get() = %v, %v", got, err)
	}
	if string(got.Data) != "data" {
		t.Errorf("Data = %q, want data", got.Data)
	}
}
