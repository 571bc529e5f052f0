package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"

	"matchup-go/internal/matchup"
)

// testHeader marks payloads sealed by TestEncryptor.
var testHeader = []byte("MUENC001")

// testMask is XORed over every payload byte so sealed clips never contain
// their plaintext.
const testMask = 0x5a

// TestEncryptor is a deterministic, reversible stand-in for AgeEncryptor.
// It needs no key files. If Setup was called, Unlock checks the passphrase.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase string
	setup      bool
}

var _ matchup.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passphrase = passphrase
	e.setup = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	return maskCopy(w, r)
}

func (e *TestEncryptor) Unlock(passphrase string) (matchup.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setup && passphrase != e.passphrase {
		return nil, fmt.Errorf("decrypting private key: incorrect passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

var _ matchup.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	return maskCopy(w, r)
}

func maskCopy(w io.Writer, r io.Reader) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		for i := range buf[:n] {
			buf[i] ^= testMask
		}
		if _, werr := bw.Write(buf[:n]); werr != nil {
			return fmt.Errorf("copying data: %w", werr)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("copying data: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
