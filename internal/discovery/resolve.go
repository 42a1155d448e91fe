package discovery

import "net/url"

// resolveURL resolves href against base, returning href unchanged if
// either fails to parse (the caller's document_patterns filter will reject
// anything that isn't a usable URL downstream).
func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	r, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(r).String()
}
