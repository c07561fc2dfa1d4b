package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/credentials"
	"github.com/snapetech/iptvsync/internal/jsonstream"
	"github.com/snapetech/iptvsync/internal/metrics"
	"github.com/snapetech/iptvsync/internal/provider"
	"github.com/snapetech/iptvsync/internal/store"
)

const guideXML = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="ch1"><display-name>ACME</display-name></channel>
  <programme channel="ch1" start="20240101100000 +0000" stop="20240101110000 +0000"><title>Morning</title></programme>
</tv>`

// portalBodies is a complete, minimal provider payload keyed by action
// ("xmltv" for the guide).
func portalBodies() map[string]string {
	return map[string]string{
		provider.ActionLiveCategories:   `[]`,
		provider.ActionLiveStreams:      `[]`,
		provider.ActionVODCategories:    `[{"category_id":"1","category_name":"Drama"}]`,
		provider.ActionVODStreams:       `[{"stream_id":1,"name":"Movie1","category_id":"1"}]`,
		provider.ActionSeriesCategories: `[]`,
		provider.ActionSeries:           `[]`,
		"xmltv":                         guideXML,
	}
}

type portal struct {
	mu     sync.Mutex
	bodies map[string]string
	seen   []string
}

func (p *portal) set(action, body string) {
	p.mu.Lock()
	p.bodies[action] = body
	p.mu.Unlock()
}

func (p *portal) requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func startPortal(t *testing.T, bodies map[string]string) (*portal, string) {
	t.Helper()
	p := &portal{bodies: bodies}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("action")
		if r.URL.Path == "/xmltv.php" {
			action = "xmltv"
		}
		p.mu.Lock()
		p.seen = append(p.seen, action)
		body, ok := p.bodies[action]
		p.mu.Unlock()
		if !ok {
			http.Error(w, "no such action", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return p, srv.URL
}

type harness struct {
	engine  *Engine
	store   *store.Store
	portal  *portal
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, bodies map[string]string, mutate func(*Options)) *harness {
	t.Helper()
	p, url := startPortal(t, bodies)
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	nop := zerolog.Nop()
	m := metrics.New()
	opts := Options{
		Credentials: credentials.Static{Portal: url, Username: "u", Password: "p"},
		Connect:     ProviderConnector(provider.Config{Logger: &nop}),
		Storage:     FromStore(st),
		Metrics:     m,
		Logger:      &nop,
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{engine: e, store: st, portal: p, metrics: m}
}

func (h *harness) run(t *testing.T) (Event, []Event) {
	t.Helper()
	var events []Event
	final := h.engine.Run(context.Background(), func(ev Event) { events = append(events, ev) })
	return final, events
}

func isSuccess(ev Event) bool {
	_, ok := ev.(Success)
	return ok
}

func TestRun_movieScenario(t *testing.T) {
	h := newHarness(t, portalBodies(), nil)
	final, events := h.run(t)
	if _, ok := final.(Success); !ok {
		t.Fatalf("final = %#v", final)
	}

	if len(events) != 5 {
		t.Fatalf("events = %d, want 4 progress + 1 terminal", len(events))
	}
	for i, ev := range events[:4] {
		p, ok := ev.(Progress)
		if !ok || p.Current != i+1 || p.Total != 4 {
			t.Errorf("event %d = %#v", i, ev)
		}
	}
	if events[4] != final {
		t.Errorf("terminal event not emitted")
	}
	wantStages := []Stage{StageLive, StageMovies, StageSeries, StageGuide}
	for i, s := range wantStages {
		if events[i].(Progress).Stage != s {
			t.Errorf("stage %d = %s, want %s", i, events[i].(Progress).Stage, s)
		}
	}

	ctx := context.Background()
	cats, _ := h.store.Categories(ctx, catalog.DomainMovie)
	if len(cats) != 2 || cats[0].Name != "Drama" || cats[1].Name != catalog.UncategorizedName {
		t.Errorf("movie categories = %+v", cats)
	}
	items, _ := h.store.Items(ctx, catalog.DomainMovie)
	if len(items) != 1 || items[0].Name != "Movie1" {
		t.Errorf("movies = %+v", items)
	}
	members, _ := h.store.Memberships(ctx, catalog.DomainMovie)
	if !reflect.DeepEqual(members, []catalog.Membership{{ItemID: 1, Domain: catalog.DomainMovie, CategoryID: 1}}) {
		t.Errorf("memberships = %+v", members)
	}

	chs, _ := h.store.GuideChannels(ctx)
	if len(chs) != 1 || chs[0].ID != "ch1" || chs[0].DisplayName == nil || *chs[0].DisplayName != "ACME" {
		t.Errorf("guide channels = %+v", chs)
	}
	progs, _ := h.store.GuideProgrammes(ctx, "")
	if len(progs) != 1 || !progs[0].Start.Before(progs[0].End) || progs[0].Title == nil || *progs[0].Title != "Morning" {
		t.Errorf("programmes = %+v", progs)
	}

	rep := final.(Success).Report
	if rep.Movies != (DomainReport{Categories: 2, Items: 1}) || rep.Guide.Channels != 1 || rep.Guide.Programmes != 1 {
		t.Errorf("report = %+v", rep)
	}
	if got := testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("success runs metric = %v", got)
	}
}

func TestRun_malformedFeedRollsBack(t *testing.T) {
	bodies := portalBodies()
	bodies[provider.ActionVODStreams] = `{bad`
	h := newHarness(t, bodies, nil)

	final, events := h.run(t)
	ev, ok := final.(Error)
	if !ok {
		t.Fatalf("final = %#v", final)
	}
	if ev.Stage != StageMovies || !strings.HasPrefix(ev.Message, "VOD sync failed: ") {
		t.Errorf("error = %+v", ev)
	}
	if !errors.Is(ev, jsonstream.ErrMalformed) {
		t.Errorf("error does not wrap ErrMalformed: %v", ev.Err)
	}
	if len(events) != 3 {
		t.Errorf("events = %d, want 2 progress + 1 terminal", len(events))
	}

	ctx := context.Background()
	if n, _ := h.store.CountItems(ctx, catalog.DomainMovie); n != 0 {
		t.Errorf("movie rows = %d", n)
	}
	if cats, _ := h.store.Categories(ctx, catalog.DomainMovie); len(cats) != 0 {
		t.Errorf("movie categories = %+v", cats)
	}
	if cats, _ := h.store.Categories(ctx, catalog.DomainLive); len(cats) != 1 {
		t.Errorf("live stage should have committed: %+v", cats)
	}
	for _, a := range h.portal.requests() {
		if a == provider.ActionSeriesCategories || a == provider.ActionSeries || a == "xmltv" {
			t.Errorf("stage after failure was attempted: %s", a)
		}
	}
}

func TestRun_failureMidStreamKeepsPreviousData(t *testing.T) {
	bodies := portalBodies()
	h := newHarness(t, bodies, func(o *Options) { o.BatchSize = 10 })
	if final, _ := h.run(t); !isSuccess(final) {
		t.Fatalf("seed run = %#v", final)
	}

	// 25 good records (two full batches written) then a truncated tail.
	var b strings.Builder
	b.WriteString("[")
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, `{"stream_id":%d,"name":"New%d","category_id":"1"},`, i+100, i)
	}
	b.WriteString(`{"stream_id":999,"name":`)
	h.portal.set(provider.ActionVODStreams, b.String())

	final, _ := h.run(t)
	if _, ok := final.(Error); !ok {
		t.Fatalf("final = %#v", final)
	}
	items, _ := h.store.Items(context.Background(), catalog.DomainMovie)
	if len(items) != 1 || items[0].Name != "Movie1" {
		t.Errorf("previous movies not preserved: %+v", items)
	}
}

func TestRun_malformedGuideKeepsPreviousData(t *testing.T) {
	h := newHarness(t, portalBodies(), func(o *Options) { o.BatchSize = 1 })
	if final, _ := h.run(t); !isSuccess(final) {
		t.Fatalf("seed run = %#v", final)
	}

	h.portal.set("xmltv", `<tv><channel id="ch9"><display-name>New</display-name></channel>`+
		`<programme channel="ch9" start="20240101100000 +0000" stop="20240101110000 +0000"><title>X`)
	final, _ := h.run(t)
	e, ok := final.(Error)
	if !ok || e.Stage != StageGuide || !strings.HasPrefix(e.Message, "EPG sync failed: ") {
		t.Fatalf("final = %#v", final)
	}

	ctx := context.Background()
	chs, err := h.store.GuideChannels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chs) != 1 || chs[0].ID != "ch1" {
		t.Errorf("previous guide channels not preserved: %+v", chs)
	}
	progs, err := h.store.GuideProgrammes(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(progs) != 1 || progs[0].ChannelID != "ch1" || *progs[0].Title != "Morning" {
		t.Errorf("previous programmes not preserved: %+v", progs)
	}
	items, _ := h.store.Items(ctx, catalog.DomainMovie)
	if len(items) != 1 {
		t.Errorf("catalog stages should have committed: %+v", items)
	}
}

func TestRun_idempotent(t *testing.T) {
	h := newHarness(t, portalBodies(), nil)
	snapshot := func() []any {
		ctx := context.Background()
		var out []any
		for _, d := range catalog.Domains {
			c, _ := h.store.Categories(ctx, d)
			i, _ := h.store.Items(ctx, d)
			m, _ := h.store.Memberships(ctx, d)
			out = append(out, c, i, m)
		}
		g, _ := h.store.GuideProgrammes(ctx, "")
		return append(out, g)
	}
	h.run(t)
	first := snapshot()
	h.run(t)
	if second := snapshot(); !reflect.DeepEqual(first, second) {
		t.Errorf("second run changed state:\n%v\n%v", first, second)
	}
}

func TestRun_uncategorizedInvariant(t *testing.T) {
	bodies := portalBodies()
	bodies[provider.ActionLiveCategories] = `[{"category_id":"999999","category_name":"Reserved"},{"category_id":"5","category_name":"News"}]`
	bodies[provider.ActionLiveStreams] = `[
		{"stream_id":1,"name":"A","category_id":"5"},
		{"stream_id":2,"name":"","category_id":"abc"},
		{"stream_id":3,"name":"C","category_id":"77"},
		{"stream_id":4,"name":"D","category_id":"5","category_ids":[5,"6"]},
		{"stream_id":0,"name":"dropped"},
		null,
		{"stream_id":{"x":1},"name":"bad shape"}
	]`
	h := newHarness(t, bodies, nil)
	final, _ := h.run(t)
	if _, ok := final.(Success); !ok {
		t.Fatalf("final = %#v", final)
	}
	ctx := context.Background()
	for _, d := range catalog.Domains {
		cats, _ := h.store.Categories(ctx, d)
		n := 0
		for _, c := range cats {
			if c.ID == catalog.DefaultUncategorizedID {
				n++
				if c.Name != catalog.UncategorizedName {
					t.Errorf("%s fallback name = %q", d, c.Name)
				}
			}
		}
		if n != 1 {
			t.Errorf("%s has %d fallback categories", d, n)
		}
	}

	members, _ := h.store.Memberships(ctx, catalog.DomainLive)
	want := []catalog.Membership{
		{ItemID: 1, Domain: catalog.DomainLive, CategoryID: 5},
		{ItemID: 2, Domain: catalog.DomainLive, CategoryID: catalog.DefaultUncategorizedID},
		{ItemID: 3, Domain: catalog.DomainLive, CategoryID: catalog.DefaultUncategorizedID},
		{ItemID: 4, Domain: catalog.DomainLive, CategoryID: 5},
	}
	if !reflect.DeepEqual(members, want) {
		t.Errorf("memberships = %+v", members)
	}
	items, _ := h.store.Items(ctx, catalog.DomainLive)
	if len(items) != 4 || items[1].Name != "Unknown Channel" {
		t.Errorf("live items = %+v", items)
	}
}

func TestRun_customUncategorizedID(t *testing.T) {
	bodies := portalBodies()
	bodies[provider.ActionVODStreams] = `[{"stream_id":1,"name":"Movie1"}]`
	h := newHarness(t, bodies, func(o *Options) { o.UncategorizedID = 424242 })
	h.run(t)
	members, _ := h.store.Memberships(context.Background(), catalog.DomainMovie)
	if len(members) != 1 || members[0].CategoryID != 424242 {
		t.Errorf("memberships = %+v", members)
	}
}

func TestRun_noCredentials(t *testing.T) {
	connected := false
	h := newHarness(t, portalBodies(), func(o *Options) {
		o.Credentials = credentials.Static{Portal: "http://p", Username: "u"}
		o.Connect = func(credentials.Credentials) (Provider, error) {
			connected = true
			return nil, errors.New("unreachable")
		}
	})
	final, events := h.run(t)
	ev, ok := final.(Error)
	if !ok || ev.Message != "No credentials found" || ev.Stage != StageCredentials {
		t.Fatalf("final = %#v", final)
	}
	if !errors.Is(ev, credentials.ErrMissing) {
		t.Errorf("err = %v", ev.Err)
	}
	if len(events) != 1 || connected || len(h.portal.requests()) != 0 {
		t.Errorf("network or progress before credential check: events=%d connected=%v", len(events), connected)
	}
}

func TestRun_providerSetupFails(t *testing.T) {
	h := newHarness(t, portalBodies(), func(o *Options) {
		o.Credentials = credentials.Static{Portal: "ftp://nope", Username: "u", Password: "p"}
	})
	final, _ := h.run(t)
	ev, ok := final.(Error)
	if !ok || !errors.Is(ev, provider.ErrInvalidPortal) {
		t.Fatalf("final = %#v", final)
	}
}

func TestRun_httpErrorNamesStage(t *testing.T) {
	bodies := portalBodies()
	delete(bodies, "xmltv")
	h := newHarness(t, bodies, nil)
	final, _ := h.run(t)
	ev, ok := final.(Error)
	if !ok || ev.Stage != StageGuide || !strings.HasPrefix(ev.Message, "EPG sync failed: ") {
		t.Fatalf("final = %#v", final)
	}
	var se *provider.StatusError
	if !errors.As(ev, &se) || se.Code != http.StatusInternalServerError {
		t.Errorf("err = %v", ev.Err)
	}
	// Earlier stages committed.
	if n, _ := h.store.CountItems(context.Background(), catalog.DomainMovie); n != 1 {
		t.Errorf("movies = %d", n)
	}
}

func TestNew_requiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error")
	}
}
