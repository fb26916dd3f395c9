package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Selections holds the chosen labels per option kind. Single-select
// groups carry exactly one label.
type Selections map[OptionKind][]string

// Normalize returns a copy with empty kinds dropped and labels sorted and
// deduplicated, so two selections can be compared as sets.
func (s Selections) Normalize() Selections {
	out := make(Selections, len(s))
	for k, labels := range s {
		seen := make(map[string]bool, len(labels))
		var uniq []string
		for _, l := range labels {
			if l == "" || seen[l] {
				continue
			}
			seen[l] = true
			uniq = append(uniq, l)
		}
		if len(uniq) == 0 {
			continue
		}
		sort.Strings(uniq)
		out[k] = uniq
	}
	return out
}

// Equal reports whether s and other select the same labels for every
// kind, ignoring order and duplicates.
func (s Selections) Equal(other Selections) bool {
	a, b := s.Normalize(), other.Normalize()
	if len(a) != len(b) {
		return false
	}
	for k, la := range a {
		lb, ok := b[k]
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if la[i] != lb[i] {
				return false
			}
		}
	}
	return true
}

// Labels flattens the selections into "Group: Choice" strings in the
// order the item declares its groups.
func (s Selections) Labels(item MenuItem) []string {
	var out []string
	norm := s.Normalize()
	for _, g := range item.Customizations {
		for _, l := range norm[g.Kind] {
			out = append(out, g.DisplayName()+": "+l)
		}
	}
	return out
}

// CartLine is one row of an order in progress.
type CartLine struct {
	Item       MenuItem        `json:"item"`
	Quantity   int             `json:"quantity"`
	Selections Selections      `json:"selections,omitempty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Total      decimal.Decimal `json:"total"`
}
