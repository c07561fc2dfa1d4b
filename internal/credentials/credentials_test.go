package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sub.txt")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	if _, err := (Static{Portal: "http://p", Username: "u", Password: "x"}).Load(ctx); err != nil {
		t.Errorf("complete static: %v", err)
	}
	for _, s := range []Static{
		{Username: "u", Password: "x"},
		{Portal: "http://p", Password: "x"},
		{Portal: "http://p", Username: "u", Password: "  "},
	} {
		if _, err := s.Load(ctx); !errors.Is(err, ErrMissing) {
			t.Errorf("%+v: err = %v", s, err)
		}
	}
}

func TestErrMissingMessage(t *testing.T) {
	if ErrMissing.Error() != "No credentials found" {
		t.Errorf("message = %q", ErrMissing.Error())
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("TEST_PORTAL", "http://portal")
	t.Setenv("TEST_USER", "u")
	t.Setenv("TEST_PASS", "")
	c, err := Env{Prefix: "TEST_"}.Load(context.Background())
	if !errors.Is(err, ErrMissing) || c.Username != "u" {
		t.Fatalf("c=%+v err=%v", c, err)
	}
	t.Setenv("TEST_PASS", "secret")
	c, err = Env{Prefix: "TEST_"}.Load(context.Background())
	if err != nil || c.Password != "secret" {
		t.Errorf("c=%+v err=%v", c, err)
	}
}

func TestSubscriptionFile(t *testing.T) {
	path := writeFile(t, "Username: myuser\n  Password: my:pass \nnoise\n")
	c, err := SubscriptionFile{Path: path, Portal: "http://fallback"}.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "myuser" || c.Password != "my:pass" || c.Portal != "http://fallback" {
		t.Errorf("c = %+v", c)
	}

	path = writeFile(t, "Portal: http://infile\nUsername: u\nPassword: p\n")
	c, err = SubscriptionFile{Path: path, Portal: "http://fallback"}.Load(context.Background())
	if err != nil || c.Portal != "http://infile" {
		t.Errorf("c=%+v err=%v", c, err)
	}
}

func TestSubscriptionFile_missing(t *testing.T) {
	_, err := SubscriptionFile{Path: filepath.Join(t.TempDir(), "nope")}.Load(context.Background())
	if !errors.Is(err, ErrMissing) {
		t.Errorf("err = %v", err)
	}
	path := writeFile(t, "Username: u\n")
	c, err := SubscriptionFile{Path: path, Portal: "http://p"}.Load(context.Background())
	if !errors.Is(err, ErrMissing) || c.Username != "u" {
		t.Errorf("c=%+v err=%v", c, err)
	}
}

func TestSubscriptionFile_defaultGlob(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	docs := filepath.Join(home, "Documents")
	if err := os.MkdirAll(docs, 0700); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(docs, "iptv.subscription.2025.txt"), []byte("Username: old\nPassword: old\n"), 0600)
	os.WriteFile(filepath.Join(docs, "iptv.subscription.2026.txt"), []byte("Username: new\nPassword: new\n"), 0600)
	c, err := SubscriptionFile{Portal: "http://p"}.Load(context.Background())
	if err != nil || c.Username != "new" {
		t.Errorf("c=%+v err=%v", c, err)
	}
}

type failing struct{ err error }

func (f failing) Load(context.Context) (Credentials, error) { return Credentials{}, f.err }

func TestChain(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, "Username: fileuser\nPassword: filepass\n")
	ch := Chain{
		Static{Username: "envuser"},
		SubscriptionFile{Path: path},
		Static{Portal: "http://p"},
	}
	c, err := ch.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "envuser" || c.Password != "filepass" || c.Portal != "http://p" {
		t.Errorf("c = %+v", c)
	}

	if _, err := (Chain{Static{Username: "u"}}).Load(ctx); !errors.Is(err, ErrMissing) {
		t.Errorf("incomplete chain err = %v", err)
	}
	boom := errors.New("keychain locked")
	if _, err := (Chain{failing{boom}, Static{Portal: "p", Username: "u", Password: "x"}}).Load(ctx); !errors.Is(err, boom) {
		t.Errorf("hard error not surfaced: %v", err)
	}
	if _, err := (Chain{}).Load(ctx); !errors.Is(err, ErrMissing) {
		t.Errorf("empty chain err = %v", err)
	}
}
