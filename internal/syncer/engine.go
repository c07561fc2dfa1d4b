// Package syncer runs a full provider catalog sync: live channels, movies,
// series and the XMLTV guide, in that order, each replaced atomically.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/credentials"
	"github.com/snapetech/iptvsync/internal/jsonstream"
	"github.com/snapetech/iptvsync/internal/logging"
	"github.com/snapetech/iptvsync/internal/metrics"
	"github.com/snapetech/iptvsync/internal/provider"
)

// Provider is the portal API a run reads from.
type Provider interface {
	Categories(ctx context.Context, domain catalog.DomainType) ([]catalog.RawCategory, error)
	Streams(ctx context.Context, domain catalog.DomainType) (io.ReadCloser, error)
	Guide(ctx context.Context) (io.ReadCloser, error)
}

// Connector builds a Provider for the credentials read at the start of a run.
type Connector func(credentials.Credentials) (Provider, error)

// ProviderConnector returns a Connector that builds *provider.Client values
// on top of base (HTTP client, logger).
func ProviderConnector(base provider.Config) Connector {
	return func(c credentials.Credentials) (Provider, error) {
		cfg := base
		cfg.Portal, cfg.Username, cfg.Password = c.Portal, c.Username, c.Password
		return provider.New(cfg)
	}
}

// Options configures an Engine. Credentials, Connect and Storage are required.
type Options struct {
	Credentials     credentials.Source
	Connect         Connector
	Storage         Storage
	BatchSize       int
	UncategorizedID int
	Metrics         *metrics.Metrics
	Logger          *zerolog.Logger
}

// Engine runs syncs. It does no locking of its own; callers run one at a time.
type Engine struct {
	creds     credentials.Source
	connect   Connector
	storage   Storage
	batchSize int
	uncatID   int
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Credentials == nil || opts.Connect == nil || opts.Storage == nil {
		return nil, errors.New("syncer: credentials, connector and storage are required")
	}
	e := &Engine{
		creds:     opts.Credentials,
		connect:   opts.Connect,
		storage:   opts.Storage,
		batchSize: opts.BatchSize,
		uncatID:   opts.UncategorizedID,
		metrics:   opts.Metrics,
		log:       logging.Component("sync"),
	}
	if e.batchSize <= 0 {
		e.batchSize = jsonstream.DefaultBatchSize
	}
	if e.uncatID <= 0 {
		e.uncatID = catalog.DefaultUncategorizedID
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	}
	return e, nil
}

type stage struct {
	name Stage
	step string
	fail string
	run  func(e *Engine, ctx context.Context, r *run) error
}

var stages = []stage{
	{StageLive, "Syncing Live TV", "Live TV sync failed", (*Engine).syncLive},
	{StageMovies, "Syncing Movies", "VOD sync failed", (*Engine).syncMovies},
	{StageSeries, "Syncing Series", "Series sync failed", (*Engine).syncSeries},
	{StageGuide, "Syncing EPG", "EPG sync failed", (*Engine).syncGuide},
}

// run is the per-invocation state threaded through the stages.
type run struct {
	id     string
	prov   Provider
	log    zerolog.Logger
	report Report
}

// Run executes every stage and returns the terminal event. emit, if non-nil,
// receives each Progress and then the same terminal event. Credentials are
// read once, before any network call.
func (e *Engine) Run(ctx context.Context, emit func(Event)) Event {
	if emit == nil {
		emit = func(Event) {}
	}
	r := &run{id: uuid.NewString()}
	r.log = e.log.With().Str("run_id", r.id).Logger()
	started := time.Now()

	finish := func(ev Event) Event {
		switch ev := ev.(type) {
		case Success:
			e.metrics.ObserveRun("success")
			e.metrics.SetLastSuccess(time.Now())
			r.log.Info().Dur("took", time.Since(started)).
				Object("live", ev.Report.Live).Object("movies", ev.Report.Movies).Object("series", ev.Report.Series).
				Int("programmes", ev.Report.Guide.Programmes).
				Msg("sync complete")
		case Error:
			e.metrics.ObserveRun("error")
			r.log.Error().Err(ev.Err).Str("stage", string(ev.Stage)).Msg(ev.Message)
		}
		emit(ev)
		return ev
	}

	creds, err := e.creds.Load(ctx)
	if err != nil || !creds.Complete() {
		if err == nil {
			err = credentials.ErrMissing
		}
		return finish(Error{RunID: r.id, Stage: StageCredentials, Message: credentials.ErrMissing.Error(), Err: err})
	}
	r.log.Info().Str("portal", creds.Portal).Str("user", creds.Username).Str("pass", logging.Mask(creds.Password)).Msg("sync start")
	r.prov, err = e.connect(creds)
	if err != nil {
		return finish(Error{RunID: r.id, Stage: StageCredentials, Message: fmt.Sprintf("Provider setup failed: %v", err), Err: err})
	}

	for i, st := range stages {
		emit(Progress{Stage: st.name, Step: st.step, Current: i + 1, Total: len(stages)})
		t0 := time.Now()
		err := st.run(e, ctx, r)
		e.metrics.ObserveStage(string(st.name), time.Since(t0))
		if err != nil {
			return finish(Error{RunID: r.id, Stage: st.name, Message: fmt.Sprintf("%s: %v", st.fail, err), Err: err})
		}
	}
	return finish(Success{RunID: r.id, Report: r.report})
}
