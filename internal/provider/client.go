// Package provider talks to an Xtream-compatible portal: category lists,
// bulk stream lists, the XMLTV guide and the account login check.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/httpclient"
	"github.com/snapetech/iptvsync/internal/logging"
	"github.com/snapetech/iptvsync/internal/safeurl"
)

// Xtream player_api actions.
const (
	ActionLiveCategories   = "get_live_categories"
	ActionLiveStreams      = "get_live_streams"
	ActionVODCategories    = "get_vod_categories"
	ActionVODStreams       = "get_vod_streams"
	ActionSeriesCategories = "get_series_categories"
	ActionSeries           = "get_series"
	actionGuide            = "xmltv"
	actionLogin            = "login"
)

// ErrInvalidPortal is returned by New when the portal is not an http(s) URL.
var ErrInvalidPortal = errors.New("provider: portal must be an http or https URL")

// StatusError is a non-2xx response to a provider request.
type StatusError struct {
	Action string
	Code   int
	// Cloudflare is set when the response looks like a Cloudflare block page.
	Cloudflare bool
}

func (e *StatusError) Error() string {
	if e.Cloudflare {
		return fmt.Sprintf("provider %s: status %d (cloudflare)", e.Action, e.Code)
	}
	return fmt.Sprintf("provider %s: unexpected status %d", e.Action, e.Code)
}

// Config configures New.
type Config struct {
	Portal   string
	Username string
	Password string
	// HTTP defaults to httpclient.Default().
	HTTP *http.Client
	// Retry applies to Login only; list downloads are never retried.
	Retry  httpclient.RetryPolicy
	Logger *zerolog.Logger
}

// Client is an Xtream portal client. It is safe for concurrent use.
type Client struct {
	base     string
	username string
	password string
	http     *http.Client
	retry    httpclient.RetryPolicy
	log      zerolog.Logger
}

// New validates the portal and returns a client.
func New(cfg Config) (*Client, error) {
	base, err := NormalizePortal(cfg.Portal)
	if err != nil {
		return nil, err
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = httpclient.Default()
	}
	log := logging.Component("provider")
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Client{
		base:     base,
		username: cfg.Username,
		password: cfg.Password,
		http:     hc,
		retry:    cfg.Retry,
		log:      log,
	}, nil
}

// NormalizePortal trims whitespace, trailing slashes and a pasted
// player_api.php suffix, and requires an http or https scheme with a host.
func NormalizePortal(portal string) (string, error) {
	p := strings.TrimSpace(portal)
	p = strings.TrimRight(p, "/")
	p = strings.TrimSuffix(p, "/player_api.php")
	p = strings.TrimRight(p, "/")
	if !safeurl.IsHTTPOrHTTPS(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPortal, portal)
	}
	return p, nil
}

// Portal returns the normalized portal URL.
func (c *Client) Portal() string { return c.base }

func (c *Client) apiURL(action string) string {
	q := url.Values{}
	q.Set("username", c.username)
	q.Set("password", c.password)
	if action != "" {
		q.Set("action", action)
	}
	return c.base + "/player_api.php?" + q.Encode()
}

func (c *Client) guideURL() string {
	q := url.Values{}
	q.Set("username", c.username)
	q.Set("password", c.password)
	return c.base + "/xmltv.php?" + q.Encode()
}

// open issues a GET and returns the body of a 2xx response.
func (c *Client) open(ctx context.Context, action, rawURL string, policy httpclient.RetryPolicy) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("provider %s: build request: %w", action, safeurl.RedactError(err))
	}
	c.log.Debug().Str("action", action).Str("portal", c.base).Msg("request")
	resp, err := httpclient.Do(ctx, c.http, req, policy)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", action, safeurl.RedactError(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cf := IsCloudflare(resp)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Action: action, Code: resp.StatusCode, Cloudflare: cf}
	}
	return resp.Body, nil
}

func categoryAction(domain catalog.DomainType) (string, error) {
	switch domain {
	case catalog.DomainLive:
		return ActionLiveCategories, nil
	case catalog.DomainMovie:
		return ActionVODCategories, nil
	case catalog.DomainSeries:
		return ActionSeriesCategories, nil
	}
	return "", fmt.Errorf("provider: unknown domain %q", domain)
}

func streamAction(domain catalog.DomainType) (string, error) {
	switch domain {
	case catalog.DomainLive:
		return ActionLiveStreams, nil
	case catalog.DomainMovie:
		return ActionVODStreams, nil
	case catalog.DomainSeries:
		return ActionSeries, nil
	}
	return "", fmt.Errorf("provider: unknown domain %q", domain)
}

// Categories downloads a domain's category list. Category lists are small and
// decoded whole. A body that is not a JSON array (some panels answer with {}
// or null when a domain is empty) yields no categories.
func (c *Client) Categories(ctx context.Context, domain catalog.DomainType) ([]catalog.RawCategory, error) {
	action, err := categoryAction(domain)
	if err != nil {
		return nil, err
	}
	body, err := c.open(ctx, action, c.apiURL(action), httpclient.RetryPolicy{})
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("provider %s: read: %w", action, err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		var probe any
		if json.Unmarshal(data, &probe) == nil {
			c.log.Warn().Str("action", action).Msg("category list is not an array; treating as empty")
			return nil, nil
		}
		return nil, fmt.Errorf("provider %s: decode: %w", action, err)
	}
	out := make([]catalog.RawCategory, 0, len(elems))
	for i, e := range elems {
		var rc catalog.RawCategory
		if err := json.Unmarshal(e, &rc); err != nil {
			c.log.Warn().Str("action", action).Int("index", i).Err(err).Msg("skip undecodable category")
			continue
		}
		out = append(out, rc)
	}
	return out, nil
}

// Streams opens a domain's bulk stream list. The caller streams and closes it.
func (c *Client) Streams(ctx context.Context, domain catalog.DomainType) (io.ReadCloser, error) {
	action, err := streamAction(domain)
	if err != nil {
		return nil, err
	}
	return c.open(ctx, action, c.apiURL(action), httpclient.RetryPolicy{})
}

// Guide opens the XMLTV document.
func (c *Client) Guide(ctx context.Context) (io.ReadCloser, error) {
	return c.open(ctx, actionGuide, c.guideURL(), httpclient.RetryPolicy{})
}

// Login fetches the account's user_info. It does not check auth; see
// UserInfo.Authenticated.
func (c *Client) Login(ctx context.Context) (*UserInfo, error) {
	body, err := c.open(ctx, actionLogin, c.apiURL(""), c.retry)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var resp struct {
		UserInfo *UserInfo `json:"user_info"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("provider %s: decode: %w", actionLogin, err)
	}
	if resp.UserInfo == nil {
		return nil, fmt.Errorf("provider %s: response has no user_info", actionLogin)
	}
	return resp.UserInfo, nil
}
