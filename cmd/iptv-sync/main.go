// Command iptv-sync mirrors an Xtream-style IPTV provider's catalog and XMLTV
// guide into a local SQLite database.
//
//	sync     One run: live channels, movies, series, then the guide. Exit 1 on failure.
//	serve    Sync on a schedule (and on SIGHUP or POST /sync); serve /metrics and /healthz
//	check    Log in to each configured portal and report which ones work
//	status   Show the last sync outcome and what is stored
//	migrate  Apply schema migrations and print the version
package main

import (
	"context"
	"errors"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/snapetech/iptvsync/internal/config"
	"github.com/snapetech/iptvsync/internal/httpclient"
	"github.com/snapetech/iptvsync/internal/logging"
	"github.com/snapetech/iptvsync/internal/metrics"
	"github.com/snapetech/iptvsync/internal/provider"
	"github.com/snapetech/iptvsync/internal/scheduler"
	"github.com/snapetech/iptvsync/internal/store"
	"github.com/snapetech/iptvsync/internal/syncer"
)

type globalOptions struct {
	Config   string `short:"c" long:"config" env:"ISYNC_CONFIG" description:"YAML config file"`
	EnvFile  string `long:"env-file" default:".env" description:"Env file loaded before the config; missing is fine"`
	DB       string `long:"db" description:"SQLite database path (overrides config)"`
	LogLevel string `long:"log-level" description:"trace, debug, info, warn or error"`
	JSONLogs bool   `long:"json-logs" description:"Log JSON lines instead of console output"`
}

var opts globalOptions

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "Synchronizes an IPTV provider's live, movie, series and guide data into SQLite."

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"sync", "Run one sync", "Runs every stage once and prints progress. Exits 1 if any stage fails.", &syncCommand{}},
		{"serve", "Sync on a schedule", "Runs syncs on the configured interval, retries failures with backoff, resyncs on SIGHUP and serves metrics.", &serveCommand{}},
		{"check", "Probe provider portals", "Logs in to each portal with the configured credentials and reports which ones work.", &checkCommand{}},
		{"status", "Show last sync and stored counts", "", &statusCommand{}},
		{"migrate", "Apply database migrations", "", &migrateCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(err)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// setup loads .env, the config file and the environment, applies command-line
// overrides and initializes logging.
func setup() (*config.Config, error) {
	if err := config.LoadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.DB != "" {
		cfg.DBPath = opts.DB
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.JSONLogs {
		cfg.LogFormat = "json"
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, nil
}

func newEngine(cfg *config.Config, st *store.Store, m *metrics.Metrics) (*syncer.Engine, error) {
	return syncer.New(syncer.Options{
		Credentials:     cfg.Credentials(),
		Connect:         syncer.ProviderConnector(provider.Config{HTTP: httpclient.New(cfg.HTTPOptions())}),
		Storage:         syncer.FromStore(st),
		BatchSize:       cfg.BatchSize,
		UncategorizedID: cfg.UncategorizedID,
		Metrics:         m,
	})
}

// newLocker returns a Redis-backed lock when RedisAddr is set so that several
// hosts sharing one provider account never sync concurrently.
func newLocker(cfg *config.Config) (scheduler.Locker, func()) {
	if cfg.RedisAddr == "" {
		return &scheduler.LocalLocker{}, func() {}
	}
	rc := scheduler.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	return scheduler.NewRedisLocker(rc), func() { _ = rc.Close() }
}

// newScheduler wires store, engine and lock into a Scheduler. The returned
// cleanup closes the lock backend.
func newScheduler(cfg *config.Config, st *store.Store, m *metrics.Metrics, onEvent func(syncer.Event)) (*scheduler.Scheduler, func(), error) {
	engine, err := newEngine(cfg, st, m)
	if err != nil {
		return nil, nil, err
	}
	locker, closeLocker := newLocker(cfg)
	s, err := scheduler.New(scheduler.Options{
		Runner:   engine,
		Recorder: st,
		Locker:   locker,
		LockKey:  cfg.LockKey,
		LockTTL:  cfg.LockTTL,
		Interval: cfg.SyncInterval,
		OnStart:  cfg.SyncOnStart,
		RetryMin: cfg.RetryMin,
		RetryMax: cfg.RetryMax,
		OnEvent:  onEvent,
		Metrics:  m,
	})
	if err != nil {
		closeLocker()
		return nil, nil, err
	}
	return s, closeLocker, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log := logging.Component("main")
	log.Debug().Str("db", st.Path()).Msg("database open")
	return st, nil
}
