package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	max := 60 * time.Second
	tests := []struct {
		name string
		s    string
		want time.Duration
	}{
		{"empty", "", time.Second},
		{"seconds", "5", 5 * time.Second},
		{"zero", "0", 0},
		{"over cap", "120", max},
		{"whitespace", "  10  ", 10 * time.Second},
		{"garbage", "x", time.Second},
		{"past date", "Mon, 01 Jan 2001 00:00:00 GMT", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.s, max); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}

func statusSequence(codes ...int) (*httptest.Server, *int32) {
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(atomic.AddInt32(&n, 1)) - 1
		code := codes[len(codes)-1]
		if i < len(codes) {
			code = codes[i]
		}
		if code == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "0")
		}
		w.WriteHeader(code)
	}))
	return srv, &n
}

func doGet(t *testing.T, url string, policy RetryPolicy) int {
	t.Helper()
	ctx := context.Background()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := Do(ctx, &http.Client{Timeout: 5 * time.Second}, req, policy)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestDo(t *testing.T) {
	fast := RetryPolicy{Attempts: 3, MaxWait: time.Second, Backoff: time.Millisecond}
	tests := []struct {
		name     string
		codes    []int
		policy   RetryPolicy
		want     int
		attempts int32
	}{
		{"429 then ok", []int{429, 200}, fast, 200, 2},
		{"5xx then ok", []int{503, 502, 200}, fast, 200, 3},
		{"gives up", []int{500}, fast, 500, 3},
		{"404 not retried", []int{404, 200}, fast, 404, 1},
		{"zero policy", []int{503, 200}, RetryPolicy{}, 503, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, n := statusSequence(tt.codes...)
			defer srv.Close()
			if got := doGet(t, srv.URL, tt.policy); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
			if got := atomic.LoadInt32(n); got != tt.attempts {
				t.Errorf("attempts = %d, want %d", got, tt.attempts)
			}
		})
	}
}

func TestDo_contextCancelledDuringWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	_, err := Do(ctx, nil, req, RetryPolicy{Attempts: 5, Backoff: time.Minute})
	if err == nil {
		t.Fatal("expected context error")
	}
}
