// Package normalize turns loosely typed provider fields into strict optional values.
//
// Xtream panels are "mostly strings, inconsistently populated": ids arrive as
// "12" or 12, ratings as "" or "7.5", timestamps as epoch seconds or garbage.
// Every helper here is total: bad input yields "absent", never an error.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// XMLTVLayout is the XMLTV timestamp layout (yyyyMMddHHmmss Z).
const XMLTVLayout = "20060102150405 -0700"

// ToInt parses s as a base-10 int after trimming. Blank or invalid input reports false.
func ToInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ToInt64 is ToInt for 64-bit values.
func ToInt64(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ToFloat parses a finite float. NaN and Inf are treated as absent.
func ToFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IntPtr returns a pointer to the parsed value, or nil.
func IntPtr(s string) *int {
	if n, ok := ToInt(s); ok {
		return &n
	}
	return nil
}

func Int64Ptr(s string) *int64 {
	if n, ok := ToInt64(s); ok {
		return &n
	}
	return nil
}

func FloatPtr(s string) *float64 {
	if f, ok := ToFloat(s); ok {
		return &f
	}
	return nil
}

// NonBlankString returns the trimmed string and whether anything was left.
func NonBlankString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

// NonBlank returns the trimmed string, or nil when it is empty.
func NonBlank(s string) *string {
	if v, ok := NonBlankString(s); ok {
		return &v
	}
	return nil
}

// OrDefault returns the trimmed string or def when blank.
func OrDefault(s, def string) string {
	if v, ok := NonBlankString(s); ok {
		return v
	}
	return def
}

// NormalizeURL fixes scheme-relative artwork URLs ("//cdn/x.png" -> "http://cdn/x.png").
// Anything else non-blank is passed through untouched; panels sometimes send
// relative or opaque values and those are not ours to validate.
func NormalizeURL(s string) *string {
	u, ok := NonBlankString(s)
	if !ok {
		return nil
	}
	if strings.HasPrefix(u, "//") {
		u = "http:" + u
	}
	return &u
}

// ParseProviderTimestamp accepts a decimal epoch (seconds or milliseconds,
// kept as supplied). The "added" field is historically unreliable so anything
// else is absent.
func ParseProviderTimestamp(s string) *int64 {
	return Int64Ptr(s)
}

// ParseXMLTVTime parses "20240101100000 +0000". A missing offset is read as UTC,
// which is what the XMLTV DTD specifies.
func ParseXMLTVTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(XMLTVLayout, s); err == nil {
		return t, true
	}
	if len(s) == len("20060102150405") {
		if t, err := time.ParseInLocation("20060102150405", s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
