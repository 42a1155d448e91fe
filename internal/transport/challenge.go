package transport

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// challengeSignatures are substrings seen in known bot-challenge interstitial
// pages (Cloudflare, generic JS-redirect walls). Matching is deliberately
// coarse: a false positive only costs a browser-channel retry, a false
// negative costs a MalformedContent job failure — the cheaper failure mode.
var challengeSignatures = [][]byte{
	[]byte("Checking your browser before accessing"),
	[]byte("cf-browser-verification"),
	[]byte("Just a moment..."),
	[]byte("/cdn-cgi/challenge-platform/"),
	[]byte("DDoS protection by"),
}

const challengeSniffLimit = 16 * 1024

// looksLikeChallengePage inspects a response's declared content type and a
// bounded prefix of its body for a known challenge-page signature. It
// returns a new Response whose Body can still be read in full (the sniffed
// prefix is stitched back in front), since Fetch callers downstream of the
// Selector still need the body.
func looksLikeChallengePage(resp *Response) (challenged bool, restored *Response, err error) {
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		return false, resp, nil
	}

	prefix := make([]byte, challengeSniffLimit)
	n, readErr := io.ReadFull(resp.Body, prefix)
	if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
		return false, resp, readErr
	}
	prefix = prefix[:n]

	for _, sig := range challengeSignatures {
		if bytes.Contains(prefix, sig) {
			restored = &Response{
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				FinalURL:   resp.FinalURL,
				Body:       &stitchedBody{prefix: prefix, rest: resp.Body},
			}
			return true, restored, nil
		}
	}

	restored = &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		FinalURL:   resp.FinalURL,
		Body:       &stitchedBody{prefix: prefix, rest: resp.Body},
	}
	return false, restored, nil
}

// stitchedBody replays a sniffed prefix before draining the underlying
// reader, so sniffing the body for a challenge signature doesn't consume it
// for the eventual caller.
type stitchedBody struct {
	prefix []byte
	off    int
	rest   io.ReadCloser
}

func (s *stitchedBody) Read(p []byte) (int, error) {
	if s.off < len(s.prefix) {
		n := copy(p, s.prefix[s.off:])
		s.off += n
		return n, nil
	}
	return s.rest.Read(p)
}

func (s *stitchedBody) Close() error {
	return s.rest.Close()
}

// isAuthOrBlocked reports whether a status code itself signals
// ErrKindAuthOrBlocked without needing a body sniff (spec.md §4.4/§7).
func isAuthOrBlocked(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}
