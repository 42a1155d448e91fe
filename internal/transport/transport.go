// Package transport selects among direct HTTP, SOCKS-tunneled HTTP, and
// browser-controlled fetch channels (spec.md §4.4), returning a uniform
// Response regardless of which channel served the request.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Request describes one fetch. Method defaults to GET when empty.
type Request struct {
	URL     string
	Method  string
	Header  http.Header
	Timeout time.Duration

	// UseBrowser routes the request to the browser channel. Discovery sets
	// it from the source's declared fetch.use_browser; the Selector's
	// retry-on-challenge path goes to the browser without it.
	UseBrowser bool
}

// Response is the uniform result across all three channels. Body streams
// the payload; callers must Close it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	FinalURL   string // after redirects
}

// Transport fetches one request over a specific channel.
type Transport interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
