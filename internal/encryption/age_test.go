package encryption

import (
	"bytes"
	"path/filepath"
	"testing"

	"matchup-go/internal/config"
)

func testKeyConfig(t *testing.T) config.EncryptionConfig {
	t.Helper()
	dir := t.TempDir()
	return config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "matchup.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "matchup.key"),
	}
}

func TestAgeEncryptor_IsConfigured(t *testing.T) {
	t.Parallel()
	e := NewAgeEncryptor(testKeyConfig(t))

	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}
	if err := e.Setup("pass"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup, want true")
	}
}

func TestAgeEncryptor_SetupRefusesExistingKeys(t *testing.T) {
	t.Parallel()
	cfg := testKeyConfig(t)

	if err := NewAgeEncryptor(cfg).Setup("pass"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := NewAgeEncryptor(cfg).Setup("other"); err == nil {
		t.Error("second Setup() should refuse to replace keys")
	}
}

func TestAgeEncryptor_SetupRejectsEmptyPassphrase(t *testing.T) {
	t.Parallel()
	e := NewAgeEncryptor(testKeyConfig(t))
	if err := e.Setup(""); err == nil {
		t.Error("Setup(\"\") should return error")
	}
	if e.IsConfigured() {
		t.Error("failed Setup should not leave keys behind")
	}
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "small clip", input: []byte("GIF89a....")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large clip", input: bytes.Repeat([]byte{0x00, 0x00, 0x01, 0xb3}, 64*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testKeyConfig(t)
			if err := NewAgeEncryptor(cfg).Setup("pass"); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			// A fresh encryptor reads the keys from disk, as a new process would.
			e := NewAgeEncryptor(cfg)
			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(encrypted.Bytes(), tt.input) {
				t.Error("ciphertext contains the plaintext")
			}

			dec, err := e.Unlock("pass")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var decrypted bytes.Buffer
			if err := dec.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", decrypted.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()

	e := NewAgeEncryptor(testKeyConfig(t))
	if err := e.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("wrong-passphrase"); err == nil {
		t.Error("Unlock() with wrong passphrase should return error")
	}
}

func TestAgeEncryptor_ChangePassphrase(t *testing.T) {
	t.Parallel()

	e := NewAgeEncryptor(testKeyConfig(t))
	if err := e.Setup("old"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	var sealed bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("clip bytes")), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if err := e.ChangePassphrase("wrong", "new"); err == nil {
		t.Fatal("ChangePassphrase() with wrong old passphrase should fail")
	}
	if err := e.ChangePassphrase("old", "new"); err != nil {
		t.Fatalf("ChangePassphrase() error = %v", err)
	}

	if _, err := e.Unlock("old"); err == nil {
		t.Error("old passphrase still unlocks after change")
	}
	dec, err := e.Unlock("new")
	if err != nil {
		t.Fatalf("Unlock(new) error = %v", err)
	}

	// Clips sealed before the change stay readable.
	var plain bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(sealed.Bytes()), &plain); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plain.String() != "clip bytes" {
		t.Errorf("Decrypt() = %q, want %q", plain.String(), "clip bytes")
	}
}

func TestAgeEncryptor_BeforeSetup(t *testing.T) {
	t.Parallel()

	e := NewAgeEncryptor(testKeyConfig(t))
	var buf bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("data")), &buf); err == nil {
		t.Error("Encrypt() before Setup should return error")
	}
	if _, err := e.Unlock("passphrase"); err == nil {
		t.Error("Unlock() before Setup should return error")
	}
}
