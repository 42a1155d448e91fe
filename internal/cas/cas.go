// Package cas implements the content-addressed blob store (spec §4.1): it
// writes file bytes exactly once per content hash and serves them back by
// digest. Layout on disk is <root>/<xx>/<yy>/<sha256-hex>, where xx/yy are
// the first four hex nibbles of the SHA-256 digest.
package cas

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when no blob exists for the given digest.
var ErrNotFound = errors.New("cas: blob not found")

// ErrHashCollision indicates a blob already exists at the destination path
// with different content than what was just written. This is treated as
// fatal: it indicates digest corruption, not a legitimate race, since two
// inputs that hash identically under both SHA-256 and BLAKE3 share content
// by construction.
var ErrHashCollision = errors.New("cas: hash collision, existing blob content differs")

// ErrEmptyInput is returned by Put when given zero bytes; empty documents
// are rejected upstream as a rejected-value fingerprint (spec §4.6 step 3).
var ErrEmptyInput = errors.New("cas: refusing to store empty input")

// Identity is the dual-hash identity of a stored blob plus its location.
type Identity struct {
	SHA256  string
	Blake3  string
	RelPath string
	Size    int64
}

// Store is a filesystem-backed content-addressed blob store rooted at Root.
type Store struct {
	Root string
}

// New returns a Store rooted at root. The root directory is created lazily
// on first Put.
func New(root string) *Store {
	return &Store{Root: root}
}

// relPath derives the on-disk path for a SHA-256 hex digest: xx/yy/digest.
func relPath(sha256Hex string) string {
	if len(sha256Hex) < 4 {
		// Defensive: callers always pass a full 64-char hex digest; a
		// malformed digest still gets a deterministic (if degenerate) path
		// rather than panicking on the slice below.
		return filepath.Join("00", "00", sha256Hex)
	}
	return filepath.Join(sha256Hex[0:2], sha256Hex[2:4], sha256Hex)
}

// Path returns the absolute path a blob with the given SHA-256 digest would
// occupy, whether or not it currently exists.
func (s *Store) Path(sha256Hex string) string {
	return filepath.Join(s.Root, relPath(sha256Hex))
}

// Get reads the blob for the given SHA-256 digest. Returns ErrNotFound if no
// blob exists at that digest's path.
func (s *Store) Get(sha256Hex string) ([]byte, error) {
	b, err := os.ReadFile(s.Path(sha256Hex))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cas: read blob %s: %w", sha256Hex, err)
	}
	return b, nil
}

// Open returns a reader for the blob at the given digest, for callers that
// want to stream rather than buffer (e.g. page decomposer rasterization).
func (s *Store) Open(sha256Hex string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(sha256Hex))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cas: open blob %s: %w", sha256Hex, err)
	}
	return f, nil
}

// Exists reports whether a blob for the given digest is already stored.
func (s *Store) Exists(sha256Hex string) bool {
	_, err := os.Stat(s.Path(sha256Hex))
	return err == nil
}
