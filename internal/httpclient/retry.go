package httpclient

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy says which responses Do retries and how long it waits.
// The zero value never retries.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// MaxWait caps a Retry-After on 429.
	MaxWait time.Duration
	// Backoff is the first wait after a 5xx or transport error; it doubles
	// on each further attempt.
	Backoff time.Duration
}

// DefaultRetryPolicy is used by one-off probes such as the login check.
// Catalog downloads are never retried.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 3,
	MaxWait:  60 * time.Second,
	Backoff:  time.Second,
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Do runs a bodiless GET/HEAD-style request under policy. 4xx other than 429
// are returned as-is. The caller closes resp.Body when err is nil.
func Do(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := policy.Backoff
	for i := 1; ; i++ {
		r := req.Clone(ctx)
		resp, err := client.Do(r)
		last := i >= attempts
		if err != nil {
			if last || ctx.Err() != nil {
				return nil, err
			}
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		if !retryable(resp.StatusCode) || last {
			return resp, nil
		}
		wait := backoff
		if resp.StatusCode == http.StatusTooManyRequests {
			wait = parseRetryAfter(resp.Header.Get("Retry-After"), policy.MaxWait)
		} else {
			backoff *= 2
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date, capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Second
	}
	var d time.Duration
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d = time.Duration(sec) * time.Second
	} else if t, err := http.ParseTime(s); err == nil {
		d = time.Until(t)
		if d < 0 {
			d = 0
		}
	} else {
		return time.Second
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
