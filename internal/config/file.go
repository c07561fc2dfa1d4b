package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML. Durations are strings ("24h") and
// absent keys keep the current value.
type fileConfig struct {
	Portal           string   `yaml:"portal"`
	Portals          []string `yaml:"portals"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	SubscriptionFile string   `yaml:"subscription_file"`
	DBPath           string   `yaml:"db_path"`
	BatchSize        *int     `yaml:"batch_size"`
	UncategorizedID  *int     `yaml:"uncategorized_id"`
	HTTP             struct {
		Timeout      string   `yaml:"timeout"`
		UserAgent    string   `yaml:"user_agent"`
		RateLimit    *float64 `yaml:"rate_limit"`
		RateBurst    *int     `yaml:"rate_burst"`
		LoginRetries *int     `yaml:"login_retries"`
	} `yaml:"http"`
	Schedule struct {
		Interval string `yaml:"interval"`
		OnStart  *bool  `yaml:"on_start"`
		RetryMin string `yaml:"retry_min"`
		RetryMax string `yaml:"retry_max"`
	} `yaml:"schedule"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       *int   `yaml:"db"`
		LockKey  string `yaml:"lock_key"`
		LockTTL  string `yaml:"lock_ttl"`
	} `yaml:"redis"`
	MetricsAddr string `yaml:"metrics_addr"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LoadFile returns the defaults overlaid with the YAML file at path.
// Environment variables are not applied.
func LoadFile(path string) (*Config, error) {
	c := Default()
	if err := c.applyFile(path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	setString(&c.Portal, f.Portal)
	if len(f.Portals) > 0 {
		c.Portals = f.Portals
	}
	setString(&c.Username, f.Username)
	setString(&c.Password, f.Password)
	setString(&c.SubscriptionFile, f.SubscriptionFile)
	setString(&c.DBPath, f.DBPath)
	setPtr(&c.BatchSize, f.BatchSize)
	setPtr(&c.UncategorizedID, f.UncategorizedID)
	setString(&c.UserAgent, f.HTTP.UserAgent)
	setPtr(&c.RateLimit, f.HTTP.RateLimit)
	setPtr(&c.RateBurst, f.HTTP.RateBurst)
	setPtr(&c.LoginRetries, f.HTTP.LoginRetries)
	setPtr(&c.SyncOnStart, f.Schedule.OnStart)
	setString(&c.RedisAddr, f.Redis.Addr)
	setString(&c.RedisPassword, f.Redis.Password)
	setPtr(&c.RedisDB, f.Redis.DB)
	setString(&c.LockKey, f.Redis.LockKey)
	setString(&c.MetricsAddr, f.MetricsAddr)
	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
	for _, d := range []struct {
		dst  *time.Duration
		val  string
		name string
	}{
		{&c.HTTPTimeout, f.HTTP.Timeout, "http.timeout"},
		{&c.SyncInterval, f.Schedule.Interval, "schedule.interval"},
		{&c.RetryMin, f.Schedule.RetryMin, "schedule.retry_min"},
		{&c.RetryMax, f.Schedule.RetryMax, "schedule.retry_max"},
		{&c.LockTTL, f.Redis.LockTTL, "redis.lock_ttl"},
	} {
		if d.val == "" {
			continue
		}
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
