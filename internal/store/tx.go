package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/snapetech/iptvsync/internal/catalog"
)

// Tx is one domain replacement. Nothing is visible to readers until Commit.
type Tx struct {
	tx   *sql.Tx
	done bool
}

// Commit makes the transaction's writes visible.
func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. It is safe to call after Commit.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("store: rollback: %w", err)
	}
	return nil
}

// ReplaceCategories deletes the domain's memberships and categories and
// inserts cats. Callers include the fallback category in cats.
func (t *Tx) ReplaceCategories(ctx context.Context, domain catalog.DomainType, cats []catalog.Category) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM memberships WHERE domain = ?`, string(domain)); err != nil {
		return fmt.Errorf("store: clear %s memberships: %w", domain, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM categories WHERE domain = ?`, string(domain)); err != nil {
		return fmt.Errorf("store: clear %s categories: %w", domain, err)
	}
	stmt, err := t.tx.PrepareContext(ctx, `INSERT OR REPLACE INTO categories (domain, id, name, parent_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare categories: %w", err)
	}
	defer stmt.Close()
	for _, c := range cats {
		if _, err := stmt.ExecContext(ctx, string(domain), c.ID, c.Name, c.ParentID); err != nil {
			return fmt.Errorf("store: insert category %d: %w", c.ID, err)
		}
	}
	return nil
}

// ClearItems deletes every item of the domain and its memberships.
func (t *Tx) ClearItems(ctx context.Context, domain catalog.DomainType) error {
	table, err := itemTable(domain)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM memberships WHERE domain = ?`, string(domain)); err != nil {
		return fmt.Errorf("store: clear %s memberships: %w", domain, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("store: clear %s: %w", table, err)
	}
	return nil
}

func (t *Tx) insertRows(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("store: insert row %d: %w", i, err)
		}
	}
	return nil
}

// InsertLive upserts live channels. A repeated id replaces the earlier row.
func (t *Tx) InsertLive(ctx context.Context, rows []catalog.LiveChannel) error {
	return t.insertRows(ctx, `INSERT OR REPLACE INTO live_channels
		(id, num, name, stream_type, stream_icon, epg_channel_id, added, custom_sid, tv_archive, direct_source, tv_archive_duration, thumbnail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.ID, r.Num, r.Name, r.StreamType, r.StreamIcon, r.EPGChannelID, r.Added, r.CustomSID, r.TVArchive, r.DirectSource, r.TVArchiveDuration, r.Thumbnail}
	})
}

// InsertMovies upserts movies.
func (t *Tx) InsertMovies(ctx context.Context, rows []catalog.Movie) error {
	return t.insertRows(ctx, `INSERT OR REPLACE INTO movies
		(id, num, name, title, year, stream_type, stream_icon, rating, rating_5based, added, container_extension, custom_sid, direct_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.ID, r.Num, r.Name, r.Title, r.Year, r.StreamType, r.StreamIcon, r.Rating, r.Rating5Based, r.Added, r.ContainerExtension, r.CustomSID, r.DirectSource}
	})
}

// InsertSeries upserts series.
func (t *Tx) InsertSeries(ctx context.Context, rows []catalog.Series) error {
	return t.insertRows(ctx, `INSERT OR REPLACE INTO series
		(id, num, name, title, year, stream_type, cover, plot, cast_names, director, genre, release_date, last_modified, rating, rating_5based, backdrop_path, youtube_trailer, episode_run_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.ID, r.Num, r.Name, r.Title, r.Year, r.StreamType, r.Cover, r.Plot, r.Cast, r.Director, r.Genre, r.ReleaseDate, r.LastModified, r.Rating, r.Rating5Based, r.BackdropPath, r.YoutubeTrailer, r.EpisodeRunTime}
	})
}

// InsertMemberships adds item/category links. The category must already exist
// in this transaction; duplicates are ignored.
func (t *Tx) InsertMemberships(ctx context.Context, rows []catalog.Membership) error {
	return t.insertRows(ctx, `INSERT OR IGNORE INTO memberships (domain, item_id, category_id) VALUES (?, ?, ?)`, len(rows), func(i int) []any {
		r := rows[i]
		return []any{string(r.Domain), r.ItemID, r.CategoryID}
	})
}

// ClearGuide deletes all guide channels and programmes.
func (t *Tx) ClearGuide(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM guide_programmes`); err != nil {
		return fmt.Errorf("store: clear guide programmes: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM guide_channels`); err != nil {
		return fmt.Errorf("store: clear guide channels: %w", err)
	}
	return nil
}

// InsertGuideChannels upserts guide channels.
func (t *Tx) InsertGuideChannels(ctx context.Context, rows []catalog.GuideChannel) error {
	return t.insertRows(ctx, `INSERT OR REPLACE INTO guide_channels (id, display_name) VALUES (?, ?)`, len(rows), func(i int) []any {
		return []any{rows[i].ID, rows[i].DisplayName}
	})
}

// InsertGuideProgrammes inserts programmes and returns how many the schema
// rejected (start not before end).
func (t *Tx) InsertGuideProgrammes(ctx context.Context, rows []catalog.GuideProgramme) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `INSERT OR IGNORE INTO guide_programmes (channel_id, start_at, end_at, title, description) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare programmes: %w", err)
	}
	defer stmt.Close()
	rejected := 0
	for _, p := range rows {
		res, err := stmt.ExecContext(ctx, p.ChannelID, p.Start.Unix(), p.End.Unix(), p.Title, p.Description)
		if err != nil {
			return rejected, fmt.Errorf("store: insert programme %s@%d: %w", p.ChannelID, p.Start.Unix(), err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			rejected++
		}
	}
	return rejected, nil
}
