package pages

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestArchiveRasterizerOrdersEntriesByName(t *testing.T) {
	body := buildZip(t, map[string]string{
		"b.txt": "second",
		"a.txt": "first",
	})

	r := &ArchiveRasterizer{}
	pages, err := r.Rasterize(context.Background(), body)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, 1, pages[0].Number)
	require.Equal(t, []byte("first"), pages[0].Image)
	require.Equal(t, 2, pages[1].Number)
	require.Equal(t, []byte("second"), pages[1].Image)
}

func TestArchiveRasterizerSkipsDirectories(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("dir/")
	require.NoError(t, err)
	w, err := zw.Create("dir/file.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("contents"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r := &ArchiveRasterizer{}
	pages, err := r.Rasterize(context.Background(), buf.Bytes())
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, []byte("contents"), pages[0].Image)
}

func TestArchiveRasterizerBoundsMaxEntries(t *testing.T) {
	body := buildZip(t, map[string]string{
		"a.txt": "1",
		"b.txt": "2",
		"c.txt": "3",
	})

	r := &ArchiveRasterizer{MaxEntries: 2}
	pages, err := r.Rasterize(context.Background(), body)
	require.NoError(t, err)
	require.Len(t, pages, 2)
}

func TestArchiveRasterizerRejectsMalformedZip(t *testing.T) {
	r := &ArchiveRasterizer{}
	_, err := r.Rasterize(context.Background(), []byte("not a zip"))
	require.Error(t, err)
}
