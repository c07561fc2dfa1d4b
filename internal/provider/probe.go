package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Status classifies a portal probe.
type Status string

const (
	StatusOK         Status = "ok"
	StatusAuthFailed Status = "auth_failed"
	StatusCloudflare Status = "cloudflare"
	StatusBadStatus  Status = "bad_status"
	StatusTimeout    Status = "timeout"
	StatusFailed     Status = "error"
)

// ProbeResult is the outcome of a login against one portal.
type ProbeResult struct {
	Portal     string
	Status     Status
	StatusCode int
	Latency    time.Duration
	User       *UserInfo
	Err        error
}

// IsCloudflare reports whether resp looks like a Cloudflare edge response:
// a Server: cloudflare header, a CF-RAY header, or a challenge page on one
// of the status codes Cloudflare uses for blocks. The body is peeked, not
// consumed past 512 bytes.
func IsCloudflare(resp *http.Response) bool {
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Server")), "cloudflare") {
		return true
	}
	if resp.Header.Get("CF-RAY") != "" {
		return true
	}
	switch resp.StatusCode {
	case 403, 503, 520, 521, 524:
	default:
		return false
	}
	buf := make([]byte, 512)
	n, _ := io.ReadFull(resp.Body, buf)
	body := strings.ToLower(string(buf[:n]))
	return strings.Contains(body, "checking your browser") ||
		strings.Contains(body, "cf-bypass") ||
		strings.Contains(body, "ray id")
}

// Probe logs in with c and classifies the result.
func (c *Client) Probe(ctx context.Context) ProbeResult {
	start := time.Now()
	info, err := c.Login(ctx)
	r := ProbeResult{Portal: c.base, Latency: time.Since(start), User: info, Err: err}
	var se *StatusError
	switch {
	case err == nil && info.Authenticated():
		r.Status, r.StatusCode = StatusOK, http.StatusOK
	case err == nil:
		r.Status, r.StatusCode = StatusAuthFailed, http.StatusOK
	case errors.As(err, &se) && se.Cloudflare:
		r.Status, r.StatusCode = StatusCloudflare, se.Code
	case errors.As(err, &se):
		r.Status, r.StatusCode = StatusBadStatus, se.Code
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout"):
		r.Status = StatusTimeout
	default:
		r.Status = StatusFailed
	}
	return r
}

// ProbeAll probes every portal with the same credentials and returns results
// ordered OK first (fastest first), then the rest by portal.
func ProbeAll(ctx context.Context, portals []string, cfg Config) []ProbeResult {
	out := make([]ProbeResult, 0, len(portals))
	for _, p := range portals {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pc := cfg
		pc.Portal = p
		c, err := New(pc)
		if err != nil {
			out = append(out, ProbeResult{Portal: p, Status: StatusFailed, Err: err})
			continue
		}
		out = append(out, c.Probe(ctx))
	}
	sort.SliceStable(out, func(i, j int) bool {
		okI, okJ := out[i].Status == StatusOK, out[j].Status == StatusOK
		if okI != okJ {
			return okI
		}
		if okI {
			return out[i].Latency < out[j].Latency
		}
		return out[i].Portal < out[j].Portal
	})
	return out
}

// FirstWorking returns the first portal that authenticates, or "".
func FirstWorking(ctx context.Context, portals []string, cfg Config) string {
	for _, r := range ProbeAll(ctx, portals, cfg) {
		if r.Status == StatusOK {
			return r.Portal
		}
	}
	return ""
}
