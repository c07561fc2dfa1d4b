package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/snapetech/iptvsync/internal/catalog"
)

// Item is the identity and display name of a catalog row.
type Item struct {
	ID   int
	Name string
}

// Counts summarizes what is currently stored.
type Counts struct {
	Categories      map[catalog.DomainType]int
	Items           map[catalog.DomainType]int
	Memberships     map[catalog.DomainType]int
	GuideChannels   int
	GuideProgrammes int
}

// Categories lists a domain's categories ordered by id.
func (s *Store) Categories(ctx context.Context, domain catalog.DomainType) ([]catalog.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, parent_id FROM categories WHERE domain = ? ORDER BY id`, string(domain))
	if err != nil {
		return nil, fmt.Errorf("store: categories: %w", err)
	}
	defer rows.Close()
	var out []catalog.Category
	for rows.Next() {
		c := catalog.Category{Domain: domain}
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Items lists a domain's items ordered by id.
func (s *Store) Items(ctx context.Context, domain catalog.DomainType) ([]Item, error) {
	table, err := itemTable(domain)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: items: %w", err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CountItems returns the number of items stored for a domain.
func (s *Store) CountItems(ctx context.Context, domain catalog.DomainType) (int, error) {
	table, err := itemTable(domain)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", table, err)
	}
	return n, nil
}

// Memberships lists a domain's memberships ordered by item then category.
func (s *Store) Memberships(ctx context.Context, domain catalog.DomainType) ([]catalog.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, category_id FROM memberships WHERE domain = ? ORDER BY item_id, category_id`, string(domain))
	if err != nil {
		return nil, fmt.Errorf("store: memberships: %w", err)
	}
	defer rows.Close()
	var out []catalog.Membership
	for rows.Next() {
		m := catalog.Membership{Domain: domain}
		if err := rows.Scan(&m.ItemID, &m.CategoryID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GuideChannels lists guide channels ordered by id.
func (s *Store) GuideChannels(ctx context.Context) ([]catalog.GuideChannel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, display_name FROM guide_channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: guide channels: %w", err)
	}
	defer rows.Close()
	var out []catalog.GuideChannel
	for rows.Next() {
		var (
			c    catalog.GuideChannel
			name sql.NullString
		)
		if err := rows.Scan(&c.ID, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			c.DisplayName = &name.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GuideProgrammes lists a channel's programmes by start time. An empty
// channelID lists every programme.
func (s *Store) GuideProgrammes(ctx context.Context, channelID string) ([]catalog.GuideProgramme, error) {
	q := `SELECT channel_id, start_at, end_at, title, description FROM guide_programmes`
	var args []any
	if channelID != "" {
		q += ` WHERE channel_id = ?`
		args = append(args, channelID)
	}
	q += ` ORDER BY channel_id, start_at`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: guide programmes: %w", err)
	}
	defer rows.Close()
	var out []catalog.GuideProgramme
	for rows.Next() {
		var (
			p           catalog.GuideProgramme
			start, end  int64
			title, desc sql.NullString
		)
		if err := rows.Scan(&p.ChannelID, &start, &end, &title, &desc); err != nil {
			return nil, err
		}
		p.Start = time.Unix(start, 0).UTC()
		p.End = time.Unix(end, 0).UTC()
		if title.Valid {
			p.Title = &title.String
		}
		if desc.Valid {
			p.Description = &desc.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Counts returns row counts for every table the sync writes.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	c := Counts{
		Categories:  map[catalog.DomainType]int{},
		Items:       map[catalog.DomainType]int{},
		Memberships: map[catalog.DomainType]int{},
	}
	for _, d := range catalog.Domains {
		n, err := s.CountItems(ctx, d)
		if err != nil {
			return c, err
		}
		c.Items[d] = n
	}
	for table, dst := range map[string]map[catalog.DomainType]int{"categories": c.Categories, "memberships": c.Memberships} {
		rows, err := s.db.QueryContext(ctx, `SELECT domain, COUNT(*) FROM `+table+` GROUP BY domain`)
		if err != nil {
			return c, fmt.Errorf("store: count %s: %w", table, err)
		}
		for rows.Next() {
			var (
				d string
				n int
			)
			if err := rows.Scan(&d, &n); err != nil {
				rows.Close()
				return c, err
			}
			dst[catalog.DomainType(d)] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return c, err
		}
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guide_channels`).Scan(&c.GuideChannels); err != nil {
		return c, fmt.Errorf("store: count guide_channels: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guide_programmes`).Scan(&c.GuideProgrammes); err != nil {
		return c, fmt.Errorf("store: count guide_programmes: %w", err)
	}
	return c, nil
}
