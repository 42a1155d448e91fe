package discovery

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"

	"github.com/foiacquire/foiacquire/internal/scheduler"
)

// patternMatcher wraps a compiled document_patterns regex.
type patternMatcher struct {
	re *regexp.Regexp
}

// newPatternMatchers compiles each of rawPatterns, returning a
// ConfigurationError-flavored error on the first invalid one (spec.md §7:
// configuration errors are fatal at startup only).
func newPatternMatchers(rawPatterns []string) ([]*patternMatcher, error) {
	out := make([]*patternMatcher, 0, len(rawPatterns))
	for _, p := range rawPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile document_patterns %q: %w", p, err)
		}
		out = append(out, &patternMatcher{re: re})
	}
	return out, nil
}

// matchesAny reports whether rawURL matches any of matchers (spec.md's
// "document_patterns[] (regex, OR-combined)"). An empty matcher set never
// matches, since a source declaring no patterns accepts no documents.
func matchesAny(matchers []*patternMatcher, rawURL string) bool {
	for _, m := range matchers {
		if m.re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// expectedMimeForURL derives the document type a discovery engine expects at
// rawURL from its file extension, so fetchpipe's HTML-masquerade check
// (spec.md §8 scenario 6) has something to compare the fetched body against.
// URLs whose extension isn't recognized return "", leaving masquerade
// detection disabled for that job exactly as it was before this field was
// populated.
func expectedMimeForURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := path.Ext(p)
	if ext == "" {
		return ""
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(t); err == nil {
		return parsed
	}
	return t
}

// Re-exported scheduler outcomes so the sibling engine files don't each
// need their own import alias.
const (
	schedulerSuccess          = scheduler.OutcomeSuccess
	schedulerRetryableFailure = scheduler.OutcomeRetryableFailure
	schedulerNeutral          = scheduler.OutcomeNeutral
)
