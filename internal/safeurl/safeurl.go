// Package safeurl checks and redacts provider URLs. Xtream portals take the
// account credentials as query parameters, so any URL that reaches a log line
// or an error message goes through Redact first.
package safeurl

import (
	"errors"
	"net/url"
	"strings"
)

const redacted = "xxxxx"

// secretParams are query keys whose values are replaced by Redact.
var secretParams = []string{"username", "password", "token"}

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return (s == "http" || s == "https") && parsed.Host != ""
}

// Redact masks credential query parameters and any userinfo in raw. A value
// that does not parse is returned with only the part before '?' kept.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		base, _, _ := strings.Cut(raw, "?")
		return base
	}
	if u.User != nil {
		u.User = url.User(redacted)
	}
	if u.RawQuery != "" {
		q := u.Query()
		for _, k := range secretParams {
			if q.Has(k) {
				q.Set(k, redacted)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// RedactError masks the URL of a *url.Error in err's chain. The result
// still matches the original chain under errors.Is.
func RedactError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	if err == error(ue) {
		return &url.Error{Op: ue.Op, URL: Redact(ue.URL), Err: ue.Err}
	}
	return &redactedError{
		msg: strings.ReplaceAll(err.Error(), ue.URL, Redact(ue.URL)),
		err: err,
	}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
