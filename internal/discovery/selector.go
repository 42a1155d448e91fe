package discovery

import (
	"strings"

	"golang.org/x/net/html"
)

// selector is the narrow CSS-like matcher the config's document_links and
// pagination.next_selectors support: a single tag name, optionally combined
// with one `.class`, one `#id`, and any number of `[attr]` presence checks
// (e.g. "a.doc-link[href]"). This is deliberately not a full CSS selector
// engine — html_crawl configs in practice name one simple rule per link
// kind, and a hand-rolled matcher over golang.org/x/net/html's parse tree
// keeps the discovery engine free of a heavyweight query-selector dependency
// (the same posture the teacher takes reaching for bufio/encoding/json over
// a templating engine for narrow parsing needs).
type selector struct {
	tag   string // "" matches any tag
	class string
	id    string
	attrs []string
}

func parseSelector(raw string) selector {
	var sel selector
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case '.':
			j := i + 1
			for j < len(raw) && raw[j] != '.' && raw[j] != '#' && raw[j] != '[' {
				j++
			}
			sel.class = raw[i+1 : j]
			i = j
		case '#':
			j := i + 1
			for j < len(raw) && raw[j] != '.' && raw[j] != '#' && raw[j] != '[' {
				j++
			}
			sel.id = raw[i+1 : j]
			i = j
		case '[':
			j := strings.IndexByte(raw[i:], ']')
			if j < 0 {
				i = len(raw)
				break
			}
			sel.attrs = append(sel.attrs, raw[i+1:i+j])
			i += j + 1
		default:
			j := i
			for j < len(raw) && raw[j] != '.' && raw[j] != '#' && raw[j] != '[' {
				j++
			}
			sel.tag = raw[i:j]
			i = j
		}
	}
	return sel
}

func (s selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	attr := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attr[a.Key] = a.Val
	}
	if s.class != "" {
		classes := strings.Fields(attr["class"])
		found := false
		for _, c := range classes {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.id != "" && attr["id"] != s.id {
		return false
	}
	for _, a := range s.attrs {
		if _, ok := attr[a]; !ok {
			return false
		}
	}
	return true
}

// hrefOf returns an element's href attribute and whether it has one.
func hrefOf(n *html.Node) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == "href" {
			return a.Val, true
		}
	}
	return "", false
}

// walk calls visit for every node in the tree rooted at n, depth-first.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// extractHrefs parses body as HTML and returns the href values of every
// element matching any of rawSelectors, resolved against base.
func extractHrefs(body []byte, rawSelectors []string, base string) ([]string, error) {
	if len(rawSelectors) == 0 {
		return nil, nil
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	sels := make([]selector, len(rawSelectors))
	for i, raw := range rawSelectors {
		sels[i] = parseSelector(raw)
	}

	var hrefs []string
	walk(doc, func(n *html.Node) {
		for _, sel := range sels {
			if sel.matches(n) {
				if href, ok := hrefOf(n); ok {
					hrefs = append(hrefs, resolveURL(base, href))
				}
				break
			}
		}
	})
	return hrefs, nil
}
