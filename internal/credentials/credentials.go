// Package credentials supplies the portal URL, username and password a sync
// run needs. Sources are read once per run.
package credentials

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrMissing means no source produced all three fields.
var ErrMissing = errors.New("No credentials found")

// Credentials identify one provider account.
type Credentials struct {
	Portal   string
	Username string
	Password string
}

// Complete reports whether every field is non-blank.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Portal) != "" &&
		strings.TrimSpace(c.Username) != "" &&
		strings.TrimSpace(c.Password) != ""
}

// merge fills c's blank fields from o.
func (c Credentials) merge(o Credentials) Credentials {
	if strings.TrimSpace(c.Portal) == "" {
		c.Portal = o.Portal
	}
	if strings.TrimSpace(c.Username) == "" {
		c.Username = o.Username
	}
	if strings.TrimSpace(c.Password) == "" {
		c.Password = o.Password
	}
	return c
}

// Source loads credentials. Implementations return ErrMissing (possibly
// wrapped) when they have nothing complete to offer; the partial value is
// still returned so Chain can combine sources.
type Source interface {
	Load(ctx context.Context) (Credentials, error)
}

// Static is a fixed set of credentials.
type Static Credentials

func (s Static) Load(context.Context) (Credentials, error) {
	c := Credentials(s)
	if !c.Complete() {
		return c, ErrMissing
	}
	return c, nil
}

// Env reads {Prefix}PORTAL, {Prefix}USER and {Prefix}PASS.
type Env struct {
	Prefix string
}

func (e Env) Load(context.Context) (Credentials, error) {
	p := e.Prefix
	if p == "" {
		p = "ISYNC_"
	}
	c := Credentials{
		Portal:   os.Getenv(p + "PORTAL"),
		Username: os.Getenv(p + "USER"),
		Password: os.Getenv(p + "PASS"),
	}
	if !c.Complete() {
		return c, ErrMissing
	}
	return c, nil
}

// SubscriptionFile reads "Username: x" / "Password: x" lines, plus an optional
// "Portal: x" line, from Path. An empty Path picks the alphabetically last
// ~/Documents/iptv.subscription.*.txt so yearly renewals keep working.
// Portal fills in when the file has none.
type SubscriptionFile struct {
	Path   string
	Portal string
}

func (s SubscriptionFile) Load(context.Context) (Credentials, error) {
	c := Credentials{Portal: s.Portal}
	path, err := s.resolve()
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrMissing, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrMissing, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "username":
			c.Username = val
		case "password":
			c.Password = val
		case "portal", "url":
			c.Portal = val
		}
	}
	if err := sc.Err(); err != nil {
		return c, fmt.Errorf("credentials: read %s: %w", path, err)
	}
	if !c.Complete() {
		return c, ErrMissing
	}
	return c, nil
}

func (s SubscriptionFile) resolve() (string, error) {
	if s.Path != "" {
		return filepath.Clean(s.Path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", os.ErrNotExist
	}
	matches, err := filepath.Glob(filepath.Join(home, "Documents", "iptv.subscription.*.txt"))
	if err != nil || len(matches) == 0 {
		return "", os.ErrNotExist
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// Chain consults sources in order, filling blank fields from later sources,
// and stops as soon as the result is complete. Errors other than ErrMissing
// are returned immediately.
type Chain []Source

func (ch Chain) Load(ctx context.Context) (Credentials, error) {
	var c Credentials
	for _, s := range ch {
		got, err := s.Load(ctx)
		if err != nil && !errors.Is(err, ErrMissing) {
			return c, err
		}
		c = c.merge(got)
		if c.Complete() {
			return c, nil
		}
	}
	return c, ErrMissing
}
