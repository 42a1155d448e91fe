package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/net/proxy"
)

// Socks tunnels requests through a SOCKS5 endpoint, the "privacy routing"
// channel spec.md §4.4 allows an operator to disable via opt-out.
type Socks struct {
	direct *Direct
}

// NewSocks dials proxyAddr (host:port, no auth) and returns a Transport
// whose underlying http.Client routes every connection through it.
func NewSocks(proxyAddr string) (*Socks, error) {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("transport: socks dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("transport: socks dialer does not support context dialing")
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return contextDialer.DialContext(ctx, network, addr)
		},
	}
	return &Socks{direct: NewDirect(&http.Client{Transport: transport})}, nil
}

func (s *Socks) Fetch(ctx context.Context, req Request) (*Response, error) {
	return s.direct.Fetch(ctx, req)
}

var _ Transport = (*Socks)(nil)
