package discovery

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are stripped during canonicalization; they vary across
// fetches of what is otherwise the same logical document and would
// otherwise defeat spec.md §3's "deterministic id derived from source +
// canonical URL."
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"ref":          true,
}

var defaultPortByScheme = map[string]string{
	"http":  "80",
	"https": "443",
}

// Canonicalize normalizes rawURL for use as a document identity key:
// lowercases the host, strips a default port for the scheme, drops known
// tracking query parameters, and sorts the remaining ones so two URLs that
// differ only in decoration or parameter order canonicalize identically.
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Host = strings.ToLower(u.Host)
	if host, port, ok := strings.Cut(u.Host, ":"); ok {
		if defaultPortByScheme[strings.ToLower(u.Scheme)] == port {
			u.Host = host
		}
	}
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			if trackingParams[strings.ToLower(k)] {
				q.Del(k)
			}
		}
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for i, k := range keys {
			for j, v := range q[k] {
				if sb.Len() > 0 {
					sb.WriteByte('&')
				}
				sb.WriteString(url.QueryEscape(k))
				sb.WriteByte('=')
				sb.WriteString(url.QueryEscape(v))
				_ = i
				_ = j
			}
		}
		u.RawQuery = sb.String()
	}

	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
