package httpclient

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter hands out one token-bucket limiter per host so that a single
// provider is never hit faster than the configured rate.
type HostLimiter struct {
	mu     sync.Mutex
	perSec rate.Limit
	burst  int
	hosts  map[string]*rate.Limiter
}

func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{perSec: rate.Limit(perSecond), burst: burst, hosts: make(map[string]*rate.Limiter)}
}

// For returns the limiter for host (host[:port]).
func (h *HostLimiter) For(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.hosts[host]
	if !ok {
		l = rate.NewLimiter(h.perSec, h.burst)
		h.hosts[host] = l
	}
	return l
}

type limitedTransport struct {
	next   http.RoundTripper
	limits *HostLimiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limits.For(req.URL.Host).Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
