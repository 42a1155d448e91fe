package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"lukechampine.com/blake3"
)

// DualHasher computes SHA-256 and BLAKE3 over the same byte stream in a
// single pass, the way the fetch pipeline needs both digests without
// reading the body twice (spec §4.1, §4.6).
type DualHasher struct {
	sha256 hash.Hash
	blake3 hash.Hash
	size   int64
}

// NewDualHasher returns a hasher ready to be used as (part of) an
// io.MultiWriter destination.
func NewDualHasher() *DualHasher {
	return &DualHasher{
		sha256: sha256.New(),
		blake3: blake3.New(32, nil),
	}
}

// Write implements io.Writer, feeding both digests.
func (h *DualHasher) Write(p []byte) (int, error) {
	n, err := h.sha256.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := h.blake3.Write(p); err != nil {
		return n, err
	}
	h.size += int64(n)
	return n, nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of everything written
// so far.
func (h *DualHasher) SHA256Hex() string {
	return hex.EncodeToString(h.sha256.Sum(nil))
}

// Blake3Hex returns the lowercase hex BLAKE3 digest of everything written
// so far.
func (h *DualHasher) Blake3Hex() string {
	return hex.EncodeToString(h.blake3.Sum(nil))
}

// Size returns the number of bytes written so far.
func (h *DualHasher) Size() int64 {
	return h.size
}

// HashBytes computes both digests over an in-memory buffer. Convenience
// wrapper around DualHasher for callers (tests, small inputs) that already
// hold the full body.
func HashBytes(b []byte) (sha256Hex, blake3Hex string, size int64) {
	h := NewDualHasher()
	_, _ = h.Write(b)
	return h.SHA256Hex(), h.Blake3Hex(), h.Size()
}
