// Package httpclient builds the HTTP clients used to talk to the provider.
//
// Clients share one tuned transport and layer on top of it: a per-host rate
// limit, brotli/gzip response decoding and a fixed User-Agent.
package httpclient

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
	DefaultUserAgent       = "iptvsync/1.0"
)

var baseTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: MaxIdleConnsPerHost,
	IdleConnTimeout:     DefaultIdleConnTimeout,
}

var defaultClient = New(Options{})

// Options configures New. Zero values pick the defaults.
type Options struct {
	// Timeout bounds a whole request including reading the body. Provider
	// feeds are large, so this is generous; 0 means DefaultTimeout and a
	// negative value disables it.
	Timeout   time.Duration
	UserAgent string
	// RatePerSecond limits requests per host. 0 means unlimited.
	RatePerSecond float64
	Burst         int
}

// New returns a client wired with the decoding, rate-limit and user-agent
// round trippers over a clone of the shared transport.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultTimeout
	case timeout < 0:
		timeout = 0
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	var rt http.RoundTripper = &decodingTransport{next: baseTransport.Clone()}
	if opts.RatePerSecond > 0 {
		rt = &limitedTransport{next: rt, limits: NewHostLimiter(opts.RatePerSecond, opts.Burst)}
	}
	rt = &userAgentTransport{next: rt, ua: ua}
	return &http.Client{Timeout: timeout, Transport: rt}
}

// Default returns the shared client.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client like Default with a different timeout.
func WithTimeout(timeout time.Duration) *http.Client {
	return New(Options{Timeout: timeout})
}

type userAgentTransport struct {
	next http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.ua)
	return t.next.RoundTrip(r)
}
