package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractHrefsMatchesTagClassAndResolvesRelative(t *testing.T) {
	body := []byte(`
		<html><body>
			<a class="doc-link" href="/records/1.pdf">one</a>
			<a class="other" href="/ignored.pdf">ignored</a>
			<a class="doc-link" href="https://other.gov/abs.pdf">two</a>
		</body></html>
	`)
	hrefs, err := extractHrefs(body, []string{"a.doc-link"}, "https://example.gov/index")
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.gov/records/1.pdf", "https://other.gov/abs.pdf"}, hrefs)
}

func TestExtractHrefsAttributePresence(t *testing.T) {
	body := []byte(`<a id="next" href="/page/2">Next</a><a>No href</a>`)
	hrefs, err := extractHrefs(body, []string{"a[href]"}, "https://example.gov/")
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.gov/page/2"}, hrefs)
}

func TestParseSelectorCombinesTagClassIDAndAttrs(t *testing.T) {
	sel := parseSelector("a.doc-link#main[href][data-x]")
	require.Equal(t, "a", sel.tag)
	require.Equal(t, "doc-link", sel.class)
	require.Equal(t, "main", sel.id)
	require.ElementsMatch(t, []string{"href", "data-x"}, sel.attrs)
}

func TestExtractHrefsEmptySelectorsReturnsNil(t *testing.T) {
	hrefs, err := extractHrefs([]byte(`<a href="/x">x</a>`), nil, "https://example.gov/")
	require.NoError(t, err)
	require.Nil(t, hrefs)
}
