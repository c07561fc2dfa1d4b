// Package mapper converts decoded provider batches into catalog rows and
// category memberships. Records that cannot be mapped are returned as
// rejections next to the accepted rows; they never abort the batch.
package mapper

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/logging"
)

// Placeholder names for records the provider sent without one.
const (
	UnknownChannel = "Unknown Channel"
	UnknownMovie   = "Unknown Movie"
	UnknownSeries  = "Unknown Series"
)

// Rejection describes one record dropped from a batch.
type Rejection struct {
	ID     string
	Name   string
	Reason string
}

func (r Rejection) Error() string {
	return fmt.Sprintf("record %q (%s): %s", r.ID, r.Name, r.Reason)
}

// Result is the outcome of mapping one batch.
type Result[T any] struct {
	Accepted    []T
	Memberships []catalog.Membership
	Rejected    []Rejection
}

// Mapper holds what the per-domain mappers need to resolve categories.
type Mapper struct {
	// UncategorizedID is the fallback category id.
	UncategorizedID int
	// Known is the set of categories written for the domain. Category
	// references outside it are treated as missing. Nil accepts any id.
	Known  catalog.Set
	Logger *zerolog.Logger
}

// New returns a Mapper for a domain's reconciled categories.
func New(uncategorizedID int, cats []catalog.Category, log *zerolog.Logger) *Mapper {
	if uncategorizedID <= 0 {
		uncategorizedID = catalog.DefaultUncategorizedID
	}
	if log == nil {
		l := logging.Component("mapper")
		log = &l
	}
	return &Mapper{UncategorizedID: uncategorizedID, Known: catalog.NewSet(cats), Logger: log}
}

// mapped is what a per-record function produces.
type mapped[T any] struct {
	item       T
	itemID     int
	categories []int
}

// mapBatch applies fn to each record. A returned error or a panic rejects
// only that record.
func mapBatch[R, T any](m *Mapper, domain catalog.DomainType, batch []R, ident func(R) (string, string), fn func(R) (mapped[T], error)) Result[T] {
	res := Result[T]{Accepted: make([]T, 0, len(batch))}
	for _, rec := range batch {
		out, err := safeMap(rec, fn)
		if err != nil {
			id, name := ident(rec)
			rej := Rejection{ID: id, Name: name, Reason: err.Error()}
			res.Rejected = append(res.Rejected, rej)
			if m.Logger != nil {
				m.Logger.Warn().Str("domain", string(domain)).Str("id", id).Str("name", name).Str("reason", rej.Reason).Msg("record dropped")
			}
			continue
		}
		res.Accepted = append(res.Accepted, out.item)
		res.Memberships = append(res.Memberships, catalog.Memberships(domain, out.itemID, out.categories)...)
	}
	return res
}

func safeMap[R, T any](rec R, fn func(R) (mapped[T], error)) (out mapped[T], err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(rec)
}

var errBadID = errors.New("missing or non-positive id")
