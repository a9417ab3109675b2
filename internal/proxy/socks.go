package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/net/proxy"
)

// NewSocksTransport returns a transport that dials every connection through
// the SOCKS5 proxy at socksAddr.
func NewSocksTransport(socksAddr string) (*http.Transport, error) {
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", socksAddr, err)
	}

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		dial = cd.DialContext
	}

	return &http.Transport{
		DialContext: dial,
	}, nil
}
