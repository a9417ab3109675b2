// Package httpkit builds the outbound HTTP clients used for weather, news
// and language-model calls. Every client has an overall timeout; a SOCKS5
// proxy can be layered underneath.
package httpkit

import (
	"net"
	"net/http"
	"time"

	"iveri/internal/proxy"
)

const (
	DefaultTimeout             = 10 * time.Second
	DefaultDialTimeout         = 5 * time.Second
	DefaultTLSHandshakeTimeout = 5 * time.Second
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultUserAgent           = "iveri-assistant/1.0"
)

type Option func(*options)

type options struct {
	timeout   time.Duration
	proxyAddr string
	userAgent string
}

// WithTimeout sets the overall request timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithProxy routes connections through a SOCKS5 proxy. Empty disables it.
func WithProxy(addr string) Option {
	return func(o *options) { o.proxyAddr = addr }
}

func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// NewTransport returns a transport with bounded dial and handshake times.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
	}
}

func NewClient(opts ...Option) (*http.Client, error) {
	o := options{
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, fn := range opts {
		fn(&o)
	}

	transport := NewTransport()
	if o.proxyAddr != "" {
		socks, err := proxy.NewSocksTransport(o.proxyAddr)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = socks.DialContext
	}

	var rt http.RoundTripper = transport
	if o.userAgent != "" {
		rt = &userAgentTransport{base: transport, ua: o.userAgent}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   o.timeout,
	}, nil
}

type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.ua)
	return t.base.RoundTrip(r)
}
