package syncer

import (
	"context"
	"fmt"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/jsonstream"
	"github.com/snapetech/iptvsync/internal/mapper"
	"github.com/snapetech/iptvsync/internal/provider"
	"github.com/snapetech/iptvsync/internal/xmltv"
)

func (e *Engine) syncLive(ctx context.Context, r *run) (err error) {
	r.report.Live, err = syncDomain(ctx, e, r, catalog.DomainLive, (*mapper.Mapper).Live, Tx.InsertLive)
	return err
}

func (e *Engine) syncMovies(ctx context.Context, r *run) (err error) {
	r.report.Movies, err = syncDomain(ctx, e, r, catalog.DomainMovie, (*mapper.Mapper).Movies, Tx.InsertMovies)
	return err
}

func (e *Engine) syncSeries(ctx context.Context, r *run) (err error) {
	r.report.Series, err = syncDomain(ctx, e, r, catalog.DomainSeries, (*mapper.Mapper).Series, Tx.InsertSeries)
	return err
}

// syncDomain replaces one catalog domain. Both downloads are opened before
// the transaction so an unreachable provider never touches storage. Any
// error rolls the whole domain back.
func syncDomain[R, T any](
	ctx context.Context, e *Engine, r *run, domain catalog.DomainType,
	mapFn func(*mapper.Mapper, []R) mapper.Result[T],
	insert func(Tx, context.Context, []T) error,
) (DomainReport, error) {
	var rep DomainReport
	log := r.log.With().Str("domain", string(domain)).Logger()

	raw, err := r.prov.Categories(ctx, domain)
	if err != nil {
		return rep, fmt.Errorf("categories: %w", err)
	}
	cats := append(catalog.Reconcile(raw, domain, e.uncatID), catalog.Uncategorized(domain, e.uncatID))
	if dropped := len(raw) - (len(cats) - 1); dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("rejected provider categories")
	}

	body, err := r.prov.Streams(ctx, domain)
	if err != nil {
		return rep, fmt.Errorf("streams: %w", err)
	}
	defer body.Close()

	tx, err := e.storage.Begin(ctx)
	if err != nil {
		return rep, err
	}
	defer tx.Rollback()

	if err := tx.ReplaceCategories(ctx, domain, cats); err != nil {
		return rep, err
	}
	if err := tx.ClearItems(ctx, domain); err != nil {
		return rep, err
	}
	rep.Categories = len(cats)

	m := mapper.New(e.uncatID, cats, &log)
	_, err = jsonstream.Batches(ctx, body, jsonstream.Options{BatchSize: e.batchSize, Logger: &log}, func(batch []R) error {
		res := mapFn(m, batch)
		if err := insert(tx, ctx, res.Accepted); err != nil {
			return err
		}
		if err := tx.InsertMemberships(ctx, res.Memberships); err != nil {
			return err
		}
		rep.Items += len(res.Accepted)
		rep.Rejected += len(res.Rejected)
		return nil
	})
	if err != nil {
		return rep, err
	}
	if err := tx.Commit(); err != nil {
		return rep, err
	}
	e.metrics.AddRecords(string(domain), rep.Items, rep.Rejected)
	log.Info().Int("categories", rep.Categories).Int("items", rep.Items).Int("rejected", rep.Rejected).Msg("domain replaced")
	return rep, nil
}

// guideSink writes parser batches into the stage transaction.
type guideSink struct {
	tx      Tx
	refused int
}

func (g *guideSink) Channels(ctx context.Context, batch []catalog.GuideChannel) error {
	return g.tx.InsertGuideChannels(ctx, batch)
}

func (g *guideSink) Programmes(ctx context.Context, batch []catalog.GuideProgramme) error {
	n, err := g.tx.InsertGuideProgrammes(ctx, batch)
	g.refused += n
	return err
}

func (e *Engine) syncGuide(ctx context.Context, r *run) error {
	log := r.log.With().Str("domain", "guide").Logger()
	body, err := r.prov.Guide(ctx)
	if err != nil {
		return fmt.Errorf("guide: %w", err)
	}
	defer body.Close()

	tx, err := e.storage.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.ClearGuide(ctx); err != nil {
		return err
	}
	sink := &guideSink{tx: tx}
	stats, err := xmltv.Parse(ctx, body, xmltv.Options{BatchSize: e.batchSize, Logger: &log}, sink)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.report.Guide = GuideReport{
		Channels:   stats.Channels,
		Programmes: stats.Programmes - sink.refused,
		Dropped:    stats.Dropped + sink.refused,
	}
	e.metrics.AddRecords("guide", r.report.Guide.Programmes, r.report.Guide.Dropped)
	log.Info().Int("channels", stats.Channels).Int("programmes", r.report.Guide.Programmes).Int("dropped", r.report.Guide.Dropped).Msg("guide replaced")
	return nil
}

var _ Provider = (*provider.Client)(nil)
