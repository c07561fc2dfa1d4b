package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/httpclient"
	"github.com/snapetech/iptvsync/internal/logging"
	"github.com/snapetech/iptvsync/internal/metrics"
	"github.com/snapetech/iptvsync/internal/provider"
	"github.com/snapetech/iptvsync/internal/scheduler"
	"github.com/snapetech/iptvsync/internal/store"
	"github.com/snapetech/iptvsync/internal/syncer"
)

type syncCommand struct{}

func (c *syncCommand) Execute([]string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sched, cleanup, err := newScheduler(cfg, st, metrics.New(), func(ev syncer.Event) { printEvent(os.Stdout, ev) })
	if err != nil {
		return err
	}
	defer cleanup()

	ev, err := sched.RunOnce(ctx)
	if errors.Is(err, scheduler.ErrLocked) {
		return errors.New("another sync holds the lock; not started")
	}
	if err != nil {
		return err
	}
	if e, failed := ev.(syncer.Error); failed {
		return e
	}
	return nil
}

// printEvent writes progress and success lines. Errors are left to the caller.
func printEvent(w io.Writer, ev syncer.Event) {
	switch ev := ev.(type) {
	case syncer.Progress:
		fmt.Fprintln(w, ev)
	case syncer.Success:
		r := ev.Report
		fmt.Fprintf(w, "Sync complete (run %s)\n", ev.RunID)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  DOMAIN\tCATEGORIES\tITEMS\tREJECTED")
		for _, d := range []struct {
			name string
			r    syncer.DomainReport
		}{{"live", r.Live}, {"movies", r.Movies}, {"series", r.Series}} {
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\n", d.name, d.r.Categories, d.r.Items, d.r.Rejected)
		}
		tw.Flush()
		fmt.Fprintf(w, "  guide: %d channels, %d programmes, %d dropped\n", r.Guide.Channels, r.Guide.Programmes, r.Guide.Dropped)
	}
}

type serveCommand struct{}

func (c *serveCommand) Execute([]string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	log := logging.Component("serve")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	sched, cleanup, err := newScheduler(cfg, st, m, func(ev syncer.Event) {
		if p, ok := ev.(syncer.Progress); ok {
			log.Info().Int("step", p.Current).Int("of", p.Total).Msg(p.Step)
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			log.Info().Msg("SIGHUP: sync requested")
			sched.Trigger()
		}
	}()

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newMux(st, m, sched),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("http listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server")
				stop()
			}
		}()
	}

	log.Info().Dur("interval", cfg.SyncInterval).Bool("on_start", cfg.SyncOnStart).Msg("scheduler started")
	err = sched.Start(ctx)
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("shutting down")
		return nil
	}
	return err
}

// healthReport is the /healthz body.
type healthReport struct {
	Status      string     `json:"status"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	Message     string     `json:"message,omitempty"`
}

func newMux(st *store.Store, m *metrics.Metrics, sched *scheduler.Scheduler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h := healthReport{Status: "pending"}
		rec, err := st.LastSync(r.Context())
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		default:
			h.LastSync, h.Message = &rec.At, rec.Message
			if !rec.LastSuccess.IsZero() {
				h.LastSuccess = &rec.LastSuccess
			}
			h.Status = "ok"
			if !rec.Success {
				h.Status = "failing"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h)
	})
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sched.Trigger()
		w.WriteHeader(http.StatusAccepted)
	})
	return mux
}

type checkCommand struct {
	Timeout time.Duration `long:"timeout" default:"20s" description:"Per-portal request timeout"`
	Args    struct {
		Portals []string `positional-arg-name:"portal" description:"Portals to probe instead of the configured ones"`
	} `positional-args:"yes"`
}

func (c *checkCommand) Execute([]string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := cfg.Credentials().Load(ctx)
	if err != nil {
		return err
	}
	portals := c.Args.Portals
	if len(portals) == 0 {
		portals = withPortal(cfg.ProviderURLs(), creds.Portal)
	}
	if len(portals) == 0 {
		return errors.New("no portal configured")
	}

	httpOpts := cfg.HTTPOptions()
	httpOpts.Timeout = c.Timeout
	results := provider.ProbeAll(ctx, portals, provider.Config{
		Username: creds.Username,
		Password: creds.Password,
		HTTP:     httpclient.New(httpOpts),
		Retry:    cfg.LoginRetryPolicy(),
	})
	printProbes(os.Stdout, results)
	for _, r := range results {
		if r.Status == provider.StatusOK {
			return nil
		}
	}
	return errors.New("no portal accepted the credentials")
}

// withPortal appends p to portals unless it is blank or already present.
func withPortal(portals []string, p string) []string {
	p = strings.TrimSpace(p)
	if p == "" {
		return portals
	}
	for _, existing := range portals {
		if existing == p {
			return portals
		}
	}
	return append(portals, p)
}

func printProbes(w io.Writer, results []provider.ProbeResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORTAL\tSTATUS\tLATENCY\tDETAIL")
	for _, r := range results {
		detail := ""
		switch {
		case r.Err != nil:
			detail = r.Err.Error()
		case r.User != nil:
			detail = fmt.Sprintf("user=%s status=%s", r.User.Username, r.User.Status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Portal, r.Status, r.Latency.Round(time.Millisecond), detail)
	}
	tw.Flush()
}

type statusCommand struct {
	Categories string `long:"categories" value-name:"DOMAIN" description:"Also list the stored categories of live, movie (vod) or series"`
}

func (c *statusCommand) Execute([]string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.LastSync(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Println("No sync recorded yet.")
	case err != nil:
		return err
	default:
		printRecord(os.Stdout, rec)
	}
	counts, err := st.Counts(ctx)
	if err != nil {
		return err
	}
	printCounts(os.Stdout, counts)
	if c.Categories == "" {
		return nil
	}
	domain, err := catalog.ParseDomain(c.Categories)
	if err != nil {
		return err
	}
	cats, err := st.Categories(ctx, domain)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s categories:\n", domain)
	for _, cat := range cats {
		fmt.Printf("  %d\t%s\n", cat.ID, cat.Name)
	}
	return nil
}

func printRecord(w io.Writer, rec store.SyncRecord) {
	outcome := "succeeded"
	if !rec.Success {
		outcome = "failed"
	}
	fmt.Fprintf(w, "Last sync %s at %s\n", outcome, rec.At.Local().Format(time.RFC3339))
	if rec.Message != "" {
		fmt.Fprintf(w, "  %s\n", rec.Message)
	}
	if !rec.Success && !rec.LastSuccess.IsZero() {
		fmt.Fprintf(w, "Last success at %s\n", rec.LastSuccess.Local().Format(time.RFC3339))
	}
}

func printCounts(w io.Writer, c store.Counts) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tCATEGORIES\tITEMS\tMEMBERSHIPS")
	for _, d := range catalog.Domains {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", d, c.Categories[d], c.Items[d], c.Memberships[d])
	}
	fmt.Fprintf(tw, "guide\t%d channels\t%d programmes\t\n", c.GuideChannels, c.GuideProgrammes)
	tw.Flush()
}

type migrateCommand struct{}

func (c *migrateCommand) Execute([]string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	version, dirty, err := st.Migrate()
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d (dirty=%v) at %s\n", version, dirty, st.Path())
	return nil
}
