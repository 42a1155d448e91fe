// Package pages implements the page decomposer (spec.md §4.7): it splits a
// version's bytes into per-page entities for paginated artifacts (PDF,
// multi-page TIFF, image bundle, ZIP/email-attachment expansion) and
// persists them with an image-hash digest that the analysis dispatcher
// uses to dedup work across versions whose rendered pages are identical.
package pages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/types"
)

// RasterizedPage is one page's rendered bytes, numbered from 1.
type RasterizedPage struct {
	Number int
	Image  []byte
}

// Rasterizer turns a whole-document byte slice into its constituent pages.
// Concrete rasterizers for real formats (PDF rendering, TIFF frame
// extraction, image-bundle expansion) are pluggable and out of core scope
// per spec.md §1 — the same "bindings to specific vendors are peripheral"
// reasoning the spec applies to OCR/LLM backends. The archive expander
// (archive/zip) is the one concrete rasterizer shipped here since it needs
// no external rendering dependency.
type Rasterizer interface {
	Rasterize(ctx context.Context, body []byte) ([]RasterizedPage, error)
}

// Decomposer routes a version's bytes to the Rasterizer registered for its
// mime type and persists the resulting page rows.
type Decomposer struct {
	Catalog     catalog.Catalog
	Rasterizers map[string]Rasterizer // keyed by mime type
}

// NewDecomposer builds a Decomposer with the archive (ZIP) rasterizer
// registered by default; callers add PDF/TIFF/image rasterizers (backed by
// whatever rendering library the deployment wires in) via Rasterizers.
func NewDecomposer(cat catalog.Catalog) *Decomposer {
	return &Decomposer{
		Catalog: cat,
		Rasterizers: map[string]Rasterizer{
			"application/zip": &ArchiveRasterizer{},
		},
	}
}

// Decompose is the fetchpipe.Pipeline.Decompose hook: for mime types with a
// registered Rasterizer, it rasterizes, hashes each page's image bytes,
// and persists the page rows (idempotently — InsertPages upserts by
// (document_id, version_id, page_number)). For mime types with no
// registered rasterizer, Decompose is a no-op: not every stored document
// is a paginated artifact.
func (d *Decomposer) Decompose(ctx context.Context, v *types.Version, body []byte) error {
	r, ok := d.Rasterizers[v.MimeType]
	if !ok {
		return nil
	}
	rendered, err := r.Rasterize(ctx, body)
	if err != nil {
		return fmt.Errorf("pages: rasterize %s version %d: %w", v.MimeType, v.ID, err)
	}
	if len(rendered) == 0 {
		return nil
	}

	out := make([]*types.Page, 0, len(rendered))
	for _, rp := range rendered {
		out = append(out, &types.Page{
			DocumentID: v.DocumentID,
			VersionID:  v.ID,
			PageNumber: rp.Number,
			ImageHash:  imageHash(rp.Image),
		})
	}
	return d.Catalog.InsertPages(ctx, out)
}

// imageHash digests a page's rendered bytes for analysis dedup (spec.md
// §4.7: "image_hash enables analysis deduplication across versions that
// produce identical page renderings"). SHA-256 is sufficient here; unlike
// the CAS's dual-hash identity, nothing keys storage off this digest, so a
// second algorithm buys nothing.
func imageHash(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
