package catalog

import "github.com/snapetech/iptvsync/internal/normalize"

const (
	// DefaultUncategorizedID is the reserved fallback category id unless one
	// is configured.
	DefaultUncategorizedID = 999999
	UncategorizedName      = "Uncategorized"
)

// Uncategorized returns the fallback category row for a domain.
func Uncategorized(domain DomainType, id int) Category {
	return Category{Domain: domain, ID: id, Name: UncategorizedName}
}

// Reconcile maps a provider category list onto domain categories.
// Entries with a missing or non-positive id, a blank name, or the reserved
// id are dropped. Duplicate ids keep the first occurrence. The fallback
// category is not included.
func Reconcile(raw []RawCategory, domain DomainType, uncategorizedID int) []Category {
	out := make([]Category, 0, len(raw))
	seen := make(map[int]bool, len(raw))
	for _, rc := range raw {
		id, ok := normalize.ToInt(rc.CategoryID.String())
		if !ok || id <= 0 || id == uncategorizedID || seen[id] {
			continue
		}
		name, ok := normalize.NonBlankString(rc.CategoryName.String())
		if !ok {
			continue
		}
		parent, _ := normalize.ToInt(rc.ParentID.String())
		seen[id] = true
		out = append(out, Category{Domain: domain, ID: id, Name: name, ParentID: parent})
	}
	return out
}

// Set is the ids of the categories written for a domain.
type Set map[int]struct{}

// NewSet indexes cats by id.
func NewSet(cats []Category) Set {
	s := make(Set, len(cats))
	for _, c := range cats {
		s[c.ID] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains every id.
func (s Set) Has(id int) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

// AssignCategories returns the category ids an item belongs to: its primary
// id plus any listed ids, positives only, de-duplicated in first-seen order.
// Ids missing from known are orphans and dropped. An item left with none gets
// the fallback id.
func AssignCategories(primary string, ids []int, known Set, uncategorizedID int) []int {
	out := make([]int, 0, 1+len(ids))
	add := func(id int) {
		if id <= 0 || id == uncategorizedID || !known.Has(id) {
			return
		}
		for _, have := range out {
			if have == id {
				return
			}
		}
		out = append(out, id)
	}
	if id, ok := normalize.ToInt(primary); ok {
		add(id)
	}
	for _, id := range ids {
		add(id)
	}
	if len(out) == 0 {
		return []int{uncategorizedID}
	}
	return out
}

// Memberships expands category ids into membership rows for one item.
func Memberships(domain DomainType, itemID int, categoryIDs []int) []Membership {
	out := make([]Membership, 0, len(categoryIDs))
	for _, cid := range categoryIDs {
		out = append(out, Membership{ItemID: itemID, Domain: domain, CategoryID: cid})
	}
	return out
}
