package pages

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
)

// ArchiveRasterizer expands a ZIP archive (the "archive" mime case in
// spec.md §4.7 — email-attachment bundles exported as ZIP, most commonly)
// into one page per contained file, ordered by name for determinism. Each
// page's "image" is the raw file bytes; this is bookkeeping and dedup
// identity, not a rendered image, which is consistent with spec.md
// treating page decomposition's rasterization step as pluggable per mime
// type while the bookkeeping stays core.
type ArchiveRasterizer struct {
	// MaxEntries bounds how many files one archive may expand into; zero
	// means unbounded. A bomb-sized archive otherwise produces unbounded
	// page rows.
	MaxEntries int
}

func (a *ArchiveRasterizer) Rasterize(_ context.Context, body []byte) ([]RasterizedPage, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	sort.Strings(names)
	if a.MaxEntries > 0 && len(names) > a.MaxEntries {
		names = names[:a.MaxEntries]
	}

	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		byName[f.Name] = f
	}

	out := make([]RasterizedPage, 0, len(names))
	for i, name := range names {
		rc, err := byName[name].Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %q: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip entry %q: %w", name, err)
		}
		out = append(out, RasterizedPage{Number: i + 1, Image: data})
	}
	return out, nil
}
