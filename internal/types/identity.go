package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// DeriveDocumentID computes the deterministic document id spec.md §3
// requires: a hash of (source, canonical URL). Callers are responsible for
// canonicalizing the URL before calling this (internal/discovery.Canonicalize)
// so that re-fetches of the same logical document, possibly through a
// decorated URL, land on the same document id.
func DeriveDocumentID(source, canonicalURL string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0}) // separator, so ("ab", "c") and ("a", "bc") never collide
	h.Write([]byte(canonicalURL))
	return hex.EncodeToString(h.Sum(nil))
}
