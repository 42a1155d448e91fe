package cas

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// lockTimeout bounds how long Put waits on the cross-process directory
// lock before giving up; a held lock past this is treated as contention,
// not a permanent failure, so callers may retry.
const lockTimeout = 10 * time.Second

var processLocks = newDigestLock()

// Put streams r into the store, computing SHA-256 and BLAKE3 in one pass,
// and atomically materializes the blob at its content-addressed path.
//
// Writes are crash-safe: the blob is written to a temp file in the store
// root (the same filesystem as its final destination), then renamed into
// place, so a
// reader either sees the complete final file or nothing at all. A prior
// file at the destination with identical content is a no-op; with
// differing content Put returns ErrHashCollision.
func (s *Store) Put(r io.Reader) (Identity, error) {
	if s.Root == "" {
		return Identity{}, fmt.Errorf("cas: store has no root configured")
	}

	tmp, err := os.CreateTemp(s.Root, "put-*.tmp")
	if err != nil {
		if mkErr := os.MkdirAll(s.Root, 0o750); mkErr != nil {
			return Identity{}, fmt.Errorf("cas: create root %s: %w", s.Root, mkErr)
		}
		tmp, err = os.CreateTemp(s.Root, "put-*.tmp")
		if err != nil {
			return Identity{}, fmt.Errorf("cas: create temp file: %w", err)
		}
	}
	tmpPath := tmp.Name()
	defer func() {
		// Best-effort cleanup; the rename below removes tmpPath on success,
		// so this only fires on an aborted write.
		_ = os.Remove(tmpPath)
	}()

	hasher := NewDualHasher()
	mw := io.MultiWriter(tmp, hasher)
	if _, err := io.Copy(mw, r); err != nil {
		_ = tmp.Close()
		return Identity{}, fmt.Errorf("cas: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Identity{}, fmt.Errorf("cas: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Identity{}, fmt.Errorf("cas: close temp file: %w", err)
	}

	if hasher.Size() == 0 {
		return Identity{}, ErrEmptyInput
	}

	sha256Hex := hasher.SHA256Hex()
	blake3Hex := hasher.Blake3Hex()
	rel := relPath(sha256Hex)
	dest := filepath.Join(s.Root, rel)
	destDir := filepath.Dir(dest)

	unlockProc := processLocks.lock(sha256Hex)
	defer unlockProc()

	dirLock, err := acquireDirLock(destDir, lockTimeout)
	if err != nil {
		return Identity{}, fmt.Errorf("cas: acquire write lock for %s: %w", sha256Hex, err)
	}
	defer releaseDirLock(dirLock)

	if existing, statErr := os.ReadFile(dest); statErr == nil {
		if bytes.Equal(existing, mustReadBack(tmpPath, hasher.Size())) {
			return Identity{SHA256: sha256Hex, Blake3: blake3Hex, RelPath: rel, Size: hasher.Size()}, nil
		}
		return Identity{}, ErrHashCollision
	} else if !os.IsNotExist(statErr) {
		return Identity{}, fmt.Errorf("cas: stat destination %s: %w", dest, statErr)
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return Identity{}, fmt.Errorf("cas: create dest dir %s: %w", destDir, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return Identity{}, fmt.Errorf("cas: rename into place: %w", err)
	}

	return Identity{SHA256: sha256Hex, Blake3: blake3Hex, RelPath: rel, Size: hasher.Size()}, nil
}

// mustReadBack re-reads the temp file for a same-digest comparison. Errors
// are treated as "content differs" (collision), since we cannot safely
// assert identity without the bytes.
func mustReadBack(path string, expectSize int64) []byte {
	b, err := os.ReadFile(path)
	if err != nil || int64(len(b)) != expectSize {
		return nil
	}
	return b
}

// PutBytes is a convenience wrapper around Put for callers that already
// hold the full body in memory (tests, small fixtures).
func (s *Store) PutBytes(b []byte) (Identity, error) {
	return s.Put(bytes.NewReader(b))
}
