package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Direct is the default channel: a plain net/http.Client.
type Direct struct {
	client *http.Client
}

// NewDirect builds a Direct transport. A nil client gets a sane default
// (no cookie jar, redirects followed, no client-wide timeout since each
// Fetch applies its own per-request deadline).
func NewDirect(client *http.Client) *Direct {
	if client == nil {
		client = &http.Client{}
	}
	return &Direct{client: client}
}

func (d *Direct) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var cancel context.CancelFunc
	if req.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("transport: direct fetch: %w", err)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	body := resp.Body
	if cancel != nil {
		body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FinalURL:   finalURL,
	}, nil
}

var _ Transport = (*Direct)(nil)

// cancelOnClose releases a Request.Timeout's context.WithTimeout once the
// response body is fully consumed, rather than at Fetch's return — the
// context must stay live while the body streams.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
