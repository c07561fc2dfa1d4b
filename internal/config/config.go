// Package config loads iptvsync settings: defaults, then an optional YAML
// file, then ISYNC_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/credentials"
	"github.com/snapetech/iptvsync/internal/httpclient"
	"github.com/snapetech/iptvsync/internal/jsonstream"
)

// EnvPrefix is the prefix of every environment variable read here.
const EnvPrefix = "ISYNC_"

// Config holds provider, storage, scheduling and observability settings.
type Config struct {
	// Provider
	Portal           string
	Portals          []string // extra portals tried by `check`
	Username         string
	Password         string
	SubscriptionFile string

	// Storage
	DBPath string

	// Sync
	BatchSize       int
	UncategorizedID int

	// HTTP
	HTTPTimeout  time.Duration
	UserAgent    string
	RateLimit    float64 // requests/second per host; 0 = unlimited
	RateBurst    int
	LoginRetries int

	// Scheduler
	SyncInterval time.Duration
	SyncOnStart  bool
	RetryMin     time.Duration
	RetryMax     time.Duration

	// Cross-process lock; empty RedisAddr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockKey       string
	LockTTL       time.Duration

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		DBPath:          "./iptvsync.db",
		BatchSize:       jsonstream.DefaultBatchSize,
		UncategorizedID: catalog.DefaultUncategorizedID,
		HTTPTimeout:     10 * time.Minute,
		UserAgent:       httpclient.DefaultUserAgent,
		RateBurst:       1,
		LoginRetries:    httpclient.DefaultRetryPolicy.Attempts,
		SyncInterval:    24 * time.Hour,
		SyncOnStart:     true,
		RetryMin:        time.Minute,
		RetryMax:        30 * time.Minute,
		LockKey:         "iptvsync:sync",
		LockTTL:         2 * time.Hour,
		MetricsAddr:     ":9464",
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Load builds the config: defaults, then path (if non-empty), then the
// environment. Call LoadEnvFile before Load to pick up a .env file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Portal = getEnv("ISYNC_PORTAL", c.Portal)
	c.Portals = getEnvList("ISYNC_PORTALS", c.Portals)
	c.Username = getEnv("ISYNC_USER", c.Username)
	c.Password = getEnv("ISYNC_PASS", c.Password)
	c.SubscriptionFile = getEnv("ISYNC_SUBSCRIPTION_FILE", c.SubscriptionFile)
	c.DBPath = getEnv("ISYNC_DB", c.DBPath)
	c.BatchSize = getEnvInt("ISYNC_BATCH_SIZE", c.BatchSize)
	c.UncategorizedID = getEnvInt("ISYNC_UNCATEGORIZED_ID", c.UncategorizedID)
	c.HTTPTimeout = getEnvDuration("ISYNC_HTTP_TIMEOUT", c.HTTPTimeout)
	c.UserAgent = getEnv("ISYNC_USER_AGENT", c.UserAgent)
	c.RateLimit = getEnvFloat("ISYNC_RATE_LIMIT", c.RateLimit)
	c.RateBurst = getEnvInt("ISYNC_RATE_BURST", c.RateBurst)
	c.LoginRetries = getEnvInt("ISYNC_LOGIN_RETRIES", c.LoginRetries)
	c.SyncInterval = getEnvDuration("ISYNC_SYNC_INTERVAL", c.SyncInterval)
	c.SyncOnStart = getEnvBool("ISYNC_SYNC_ON_START", c.SyncOnStart)
	c.RetryMin = getEnvDuration("ISYNC_RETRY_MIN", c.RetryMin)
	c.RetryMax = getEnvDuration("ISYNC_RETRY_MAX", c.RetryMax)
	c.RedisAddr = getEnv("ISYNC_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("ISYNC_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("ISYNC_REDIS_DB", c.RedisDB)
	c.LockKey = getEnv("ISYNC_LOCK_KEY", c.LockKey)
	c.LockTTL = getEnvDuration("ISYNC_LOCK_TTL", c.LockTTL)
	c.MetricsAddr = getEnv("ISYNC_METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = getEnv("ISYNC_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("ISYNC_LOG_FORMAT", c.LogFormat)
}

// Validate rejects settings the sync cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("config: batch size must be positive, got %d", c.BatchSize)
	case c.UncategorizedID <= 0:
		return fmt.Errorf("config: uncategorized id must be positive, got %d", c.UncategorizedID)
	case c.DBPath == "":
		return fmt.Errorf("config: database path is empty")
	case c.RetryMin > c.RetryMax:
		return fmt.Errorf("config: retry min %s exceeds max %s", c.RetryMin, c.RetryMax)
	}
	return nil
}

// Credentials returns the credential source for a sync run: explicit
// settings first, then the subscription file for whatever is still missing.
func (c *Config) Credentials() credentials.Source {
	return credentials.Chain{
		credentials.Static{Portal: c.Portal, Username: c.Username, Password: c.Password},
		credentials.SubscriptionFile{Path: c.SubscriptionFile, Portal: c.Portal},
	}
}

// ProviderURLs returns every portal to try: Portal followed by Portals,
// without duplicates.
func (c *Config) ProviderURLs() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range append([]string{c.Portal}, c.Portals...) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// HTTPOptions maps the HTTP settings onto httpclient.Options.
func (c *Config) HTTPOptions() httpclient.Options {
	return httpclient.Options{
		Timeout:       c.HTTPTimeout,
		UserAgent:     c.UserAgent,
		RatePerSecond: c.RateLimit,
		Burst:         c.RateBurst,
	}
}

// LoginRetryPolicy is the retry policy for the login probe.
func (c *Config) LoginRetryPolicy() httpclient.RetryPolicy {
	p := httpclient.DefaultRetryPolicy
	p.Attempts = c.LoginRetries
	return p
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
