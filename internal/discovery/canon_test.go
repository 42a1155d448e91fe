package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeStripsTrackingParamsAndSortsRemaining(t *testing.T) {
	got, err := Canonicalize("https://Example.GOV:443/a/b?utm_source=x&z=1&a=2&fbclid=abc#frag")
	require.NoError(t, err)
	require.Equal(t, "https://example.gov/a/b?a=2&z=1", got)
}

func TestCanonicalizeDefaultsEmptyPath(t *testing.T) {
	got, err := Canonicalize("https://example.gov")
	require.NoError(t, err)
	require.Equal(t, "https://example.gov/", got)
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	once, err := Canonicalize("https://example.gov/a?b=2&a=1&gclid=x")
	require.NoError(t, err)
	twice, err := Canonicalize(once)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestCanonicalizeRejectsMalformedURL(t *testing.T) {
	_, err := Canonicalize("http://[::1")
	require.Error(t, err)
}
