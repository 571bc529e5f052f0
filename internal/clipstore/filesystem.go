package clipstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"matchup-go/internal/matchup"
)

const metaSuffix = ".json"

// FileSystemStore is a filesystem-based implementation of the ClipStore
// interface. It stores clip bytes and their metadata side by side:
//
//	<root>/
//	  clips/
//	    <key>        (encoded clip bytes)
//	  meta/
//	    <key>.json   (mime type, creation time, size)
//
// A clip is visible once its metadata file exists. Both files are written
// with temp file + rename.
type FileSystemStore struct {
	root     string
	clipsDir string
	metaDir  string
}

type clipMeta struct {
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

// NewFileSystemStore creates a new filesystem store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	clipsDir := filepath.Join(root, "clips")
	metaDir := filepath.Join(root, "meta")

	if err := os.MkdirAll(clipsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create clips directory: %w", err)
	}
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create meta directory: %w", err)
	}

	return &FileSystemStore{root: root, clipsDir: clipsDir, metaDir: metaDir}, nil
}

func (s *FileSystemStore) clipPath(key string) string { return filepath.Join(s.clipsDir, key) }
func (s *FileSystemStore) metaPath(key string) string { return filepath.Join(s.metaDir, key+metaSuffix) }

func (s *FileSystemStore) Put(ctx context.Context, key string, clip *matchup.StoredClip) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	size := int64(len(clip.Data))
	if err := writeFile(s.clipPath(key), bytes.NewReader(clip.Data), size); err != nil {
		return fmt.Errorf("writing clip %s: %w", key, err)
	}

	meta, err := json.Marshal(clipMeta{MimeType: clip.MimeType, CreatedAt: clip.CreatedAt, Size: size})
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", key, err)
	}
	if err := writeFile(s.metaPath(key), bytes.NewReader(meta), int64(len(meta))); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", key, err)
	}
	return nil
}

func (s *FileSystemStore) Get(ctx context.Context, key string) (*matchup.StoredClip, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("reading metadata for %s: %w", key, err)
	}
	var meta clipMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", key, err)
	}

	data, err := os.ReadFile(s.clipPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("reading clip %s: %w", key, err)
	}
	if int64(len(data)) != meta.Size {
		return nil, fmt.Errorf("clip %s is %d bytes, metadata says %d", key, len(data), meta.Size)
	}

	return &matchup.StoredClip{MimeType: meta.MimeType, CreatedAt: meta.CreatedAt, Data: data}, nil
}

func (s *FileSystemStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	// Metadata goes first so a half-deleted clip is already invisible.
	existed := true
	if err := os.Remove(s.metaPath(key)); err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("removing metadata for %s: %w", key, err)
		}
		existed = false
	}
	if err := os.Remove(s.clipPath(key)); err != nil && !os.IsNotExist(err) {
		return existed, fmt.Errorf("removing clip %s: %w", key, err)
	}
	return existed, nil
}

func (s *FileSystemStore) ListKeys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.metaDir)
	if err != nil {
		return nil, fmt.Errorf("listing clips: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, metaSuffix))
	}
	slices.Sort(keys)
	return keys, nil
}

// ValidateSetup verifies that the store directories are accessible.
func (s *FileSystemStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root is not a directory: %s", s.root)
	}

	for _, dir := range []string{s.clipsDir, s.metaDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("store directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Temp file in the same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

// Compile-time check that FileSystemStore implements matchup.ClipStore interface
var _ matchup.ClipStore = (*FileSystemStore)(nil)
