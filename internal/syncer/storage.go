package syncer

import (
	"context"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/store"
)

// Storage opens the transaction each stage writes through.
type Storage interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one stage's atomic replacement. Rollback after Commit is a no-op.
type Tx interface {
	ReplaceCategories(ctx context.Context, domain catalog.DomainType, cats []catalog.Category) error
	ClearItems(ctx context.Context, domain catalog.DomainType) error
	InsertLive(ctx context.Context, rows []catalog.LiveChannel) error
	InsertMovies(ctx context.Context, rows []catalog.Movie) error
	InsertSeries(ctx context.Context, rows []catalog.Series) error
	InsertMemberships(ctx context.Context, rows []catalog.Membership) error
	ClearGuide(ctx context.Context) error
	InsertGuideChannels(ctx context.Context, rows []catalog.GuideChannel) error
	InsertGuideProgrammes(ctx context.Context, rows []catalog.GuideProgramme) (int, error)
	Commit() error
	Rollback() error
}

type sqliteStorage struct{ s *store.Store }

// FromStore adapts a sqlite store.
func FromStore(s *store.Store) Storage { return sqliteStorage{s} }

func (a sqliteStorage) Begin(ctx context.Context) (Tx, error) {
	tx, err := a.s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
