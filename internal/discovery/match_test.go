package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchesAnyORCombinesPatterns(t *testing.T) {
	matchers, err := newPatternMatchers([]string{`\.pdf$`, `\.docx$`})
	require.NoError(t, err)

	require.True(t, matchesAny(matchers, "https://example.gov/a.pdf"))
	require.True(t, matchesAny(matchers, "https://example.gov/b.docx"))
	require.False(t, matchesAny(matchers, "https://example.gov/c.html"))
}

func TestMatchesAnyEmptyMatchersNeverMatch(t *testing.T) {
	require.False(t, matchesAny(nil, "https://example.gov/a.pdf"))
}

func TestNewPatternMatchersRejectsInvalidRegex(t *testing.T) {
	_, err := newPatternMatchers([]string{"("})
	require.Error(t, err)
}

func TestExpectedMimeForURLDerivesFromExtension(t *testing.T) {
	require.Equal(t, "application/pdf", expectedMimeForURL("https://example.gov/records/report.pdf"))
	require.Equal(t, "application/pdf", expectedMimeForURL("https://example.gov/records/report.pdf?version=2"))
	require.Equal(t, "text/plain", expectedMimeForURL("https://example.gov/notes.txt"))
}

func TestExpectedMimeForURLReturnsEmptyForUnknownExtension(t *testing.T) {
	require.Empty(t, expectedMimeForURL("https://example.gov/records/listing"))
	require.Empty(t, expectedMimeForURL("not a url at all"))
}
