package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/snapetech/iptvsync/internal/catalog"
)

// clearEnv unsets every ISYNC_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, EnvPrefix) {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoad_defaults(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.BatchSize != 100 || c.UncategorizedID != catalog.DefaultUncategorizedID {
		t.Errorf("batch=%d uncategorized=%d", c.BatchSize, c.UncategorizedID)
	}
	if c.SyncInterval != 24*time.Hour || !c.SyncOnStart || c.RetryMin != time.Minute || c.RetryMax != 30*time.Minute {
		t.Errorf("schedule = %v %v %v %v", c.SyncInterval, c.SyncOnStart, c.RetryMin, c.RetryMax)
	}
	if c.RedisAddr != "" {
		t.Errorf("redis should be off by default")
	}
}

func TestLoad_env(t *testing.T) {
	clearEnv(t)
	t.Setenv("ISYNC_PORTAL", "http://portal")
	t.Setenv("ISYNC_PORTALS", "http://a, ,http://b")
	t.Setenv("ISYNC_BATCH_SIZE", "250")
	t.Setenv("ISYNC_UNCATEGORIZED_ID", "-1x")
	t.Setenv("ISYNC_SYNC_INTERVAL", "6h")
	t.Setenv("ISYNC_SYNC_ON_START", "false")
	t.Setenv("ISYNC_RATE_LIMIT", "2.5")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Portal != "http://portal" || c.BatchSize != 250 || c.SyncInterval != 6*time.Hour || c.SyncOnStart {
		t.Errorf("c = %+v", c)
	}
	if c.UncategorizedID != catalog.DefaultUncategorizedID {
		t.Errorf("unparseable int should keep default, got %d", c.UncategorizedID)
	}
	if !reflect.DeepEqual(c.Portals, []string{"http://a", "http://b"}) {
		t.Errorf("portals = %q", c.Portals)
	}
	if opts := c.HTTPOptions(); opts.RatePerSecond != 2.5 {
		t.Errorf("http options = %+v", opts)
	}
}

func TestLoad_fileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "iptvsync.yaml")
	yaml := `
portal: http://file-portal
username: fileuser
db_path: /data/catalog.db
batch_size: 50
uncategorized_id: 424242
http:
  timeout: 90s
  rate_limit: 4
schedule:
  interval: 12h
  on_start: false
redis:
  addr: localhost:6379
  lock_ttl: 30m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ISYNC_BATCH_SIZE", "75")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Portal != "http://file-portal" || c.DBPath != "/data/catalog.db" || c.UncategorizedID != 424242 {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.BatchSize != 75 {
		t.Errorf("env should override file, batch = %d", c.BatchSize)
	}
	if c.HTTPTimeout != 90*time.Second || c.SyncInterval != 12*time.Hour || c.SyncOnStart || c.LockTTL != 30*time.Minute {
		t.Errorf("durations/bools = %v %v %v %v", c.HTTPTimeout, c.SyncInterval, c.SyncOnStart, c.LockTTL)
	}
	if c.RateLimit != 4 || c.RedisAddr != "localhost:6379" || c.LogLevel != "debug" {
		t.Errorf("nested = %v %q %q", c.RateLimit, c.RedisAddr, c.LogLevel)
	}
	if c.LogFormat != "console" {
		t.Errorf("absent key should keep default, format = %q", c.LogFormat)
	}
}

func TestLoadFile_errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("schedule:\n  interval: soon\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("bad duration should fail")
	}
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"batch":         func(c *Config) { c.BatchSize = 0 },
		"uncategorized": func(c *Config) { c.UncategorizedID = 0 },
		"db":            func(c *Config) { c.DBPath = "" },
		"retry":         func(c *Config) { c.RetryMin = time.Hour },
	} {
		c := Default()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestCredentials_subscriptionFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub.txt")
	os.WriteFile(path, []byte("Username: fileuser\nPassword: filepass\n"), 0600)
	c := Default()
	c.Portal = "http://p"
	c.Username = "envuser"
	c.SubscriptionFile = path
	got, err := c.Credentials().Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "envuser" || got.Password != "filepass" || got.Portal != "http://p" {
		t.Errorf("credentials = %+v", got)
	}
}

func TestProviderURLs(t *testing.T) {
	c := Default()
	if len(c.ProviderURLs()) != 0 {
		t.Errorf("no portal configured should give none")
	}
	c.Portal = "http://a"
	c.Portals = []string{"http://b", "http://a", " "}
	if got := c.ProviderURLs(); !reflect.DeepEqual(got, []string{"http://a", "http://b"}) {
		t.Errorf("ProviderURLs = %q", got)
	}
}
