package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

// ErrInvalidItem wraps every validation failure of a menu item.
var ErrInvalidItem = errors.New("invalid menu item")

// Validate checks an item and its option groups before it is stored.
// Price deltas may only be negative on size groups (a small that costs
// less than the base).
func Validate(item model.MenuItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if item.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}
	if !item.Type.Valid() {
		return fmt.Errorf("%w: type must be beverage or food", ErrInvalidItem)
	}
	seen := map[model.OptionKind]bool{}
	for _, g := range item.Customizations {
		if !g.Kind.Known() {
			return fmt.Errorf("%w: unknown option kind %q", ErrInvalidItem, g.Kind)
		}
		if !g.Kind.AppliesTo(item.Type) {
			return fmt.Errorf("%w: %s options do not apply to %s items", ErrInvalidItem, g.Kind, item.Type)
		}
		if seen[g.Kind] {
			return fmt.Errorf("%w: duplicate %s group", ErrInvalidItem, g.Kind)
		}
		seen[g.Kind] = true
		if len(g.Choices) == 0 {
			return fmt.Errorf("%w: %s has no choices", ErrInvalidItem, g.DisplayName())
		}
		labels := map[string]bool{}
		for _, c := range g.Choices {
			if strings.TrimSpace(c.Label) == "" {
				return fmt.Errorf("%w: %s has an empty choice", ErrInvalidItem, g.DisplayName())
			}
			if labels[c.Label] {
				return fmt.Errorf("%w: %s lists %q twice", ErrInvalidItem, g.DisplayName(), c.Label)
			}
			labels[c.Label] = true
			if c.PriceDelta.IsNegative() && g.Kind != model.OptionSize {
				return fmt.Errorf("%w: %s %q has a negative price", ErrInvalidItem, g.DisplayName(), c.Label)
			}
			if item.Price.Add(c.PriceDelta).IsNegative() {
				return fmt.Errorf("%w: %s %q makes the price negative", ErrInvalidItem, g.DisplayName(), c.Label)
			}
		}
	}
	return nil
}
