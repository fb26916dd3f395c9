package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemType separates drinks from dishes. Only food lines are sent to
// the kitchen.
type ItemType string

const (
	ItemBeverage ItemType = "beverage"
	ItemFood     ItemType = "food"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool { return t == ItemBeverage || t == ItemFood }

// OptionKind enumerates the customization groups a menu item may carry.
// Each kind is bound to the item types it makes sense for (a drink has a
// sweetness level, a dish has a spice level).
type OptionKind string

const (
	OptionSize        OptionKind = "size"
	OptionSweetness   OptionKind = "sweetness"
	OptionIce         OptionKind = "ice"
	OptionTemperature OptionKind = "temperature"
	OptionMilk        OptionKind = "milk"
	OptionToppings    OptionKind = "toppings"
	OptionSpice       OptionKind = "spice"
	OptionExtras      OptionKind = "extras"
)

// optionKinds maps each kind to the item types it applies to and to the
// label shown when a group has no explicit name.
var optionKinds = map[OptionKind]struct {
	label   string
	applies []ItemType
}{
	OptionSize:        {"Size", []ItemType{ItemBeverage, ItemFood}},
	OptionSweetness:   {"Sweetness", []ItemType{ItemBeverage}},
	OptionIce:         {"Ice", []ItemType{ItemBeverage}},
	OptionTemperature: {"Temperature", []ItemType{ItemBeverage}},
	OptionMilk:        {"Milk", []ItemType{ItemBeverage}},
	OptionToppings:    {"Toppings", []ItemType{ItemBeverage, ItemFood}},
	OptionSpice:       {"Spice", []ItemType{ItemFood}},
	OptionExtras:      {"Extras", []ItemType{ItemFood}},
}

// Known reports whether k is a declared option kind.
func (k OptionKind) Known() bool {
	_, ok := optionKinds[k]
	return ok
}

// AppliesTo reports whether groups of kind k may be attached to items of type t.
func (k OptionKind) AppliesTo(t ItemType) bool {
	for _, it := range optionKinds[k].applies {
		if it == t {
			return true
		}
	}
	return false
}

// Label returns the default display name of the kind.
func (k OptionKind) Label() string {
	if d, ok := optionKinds[k]; ok {
		return d.label
	}
	return string(k)
}

// Choice is one selectable value inside an option group together with
// the amount it adds to the item's base price.
type Choice struct {
	Label      string          `json:"label"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// OptionGroup is a typed customization group attached to a menu item.
//
// Fields:
//
//	Kind     – which enumerated group this is (size, sweetness, ...).
//	Name     – display name; empty means Kind.Label().
//	Required – a selection must be made before the item enters a cart.
//	Multi    – more than one choice may be selected.
//	Choices  – the allowed values with their price deltas.
type OptionGroup struct {
	Kind     OptionKind `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Required bool       `json:"required"`
	Multi    bool       `json:"multi"`
	Choices  []Choice   `json:"choices"`
}

// DisplayName returns the group's name, falling back to its kind label.
func (g OptionGroup) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.Kind.Label()
}

// Choice looks up a choice by label.
func (g OptionGroup) Choice(label string) (Choice, bool) {
	for _, c := range g.Choices {
		if c.Label == label {
			return c, true
		}
	}
	return Choice{}, false
}

// MenuItem is a sellable catalog entry.
type MenuItem struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Description    string          `json:"description,omitempty"`
	Type           ItemType        `json:"type"`
	Category       string          `json:"category,omitempty"`
	Customizations []OptionGroup   `json:"customizations,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Group returns the option group of the given kind, if the item has one.
func (m MenuItem) Group(kind OptionKind) (OptionGroup, bool) {
	for _, g := range m.Customizations {
		if g.Kind == kind {
			return g, true
		}
	}
	return OptionGroup{}, false
}

// Category groups menu items on the ordering screens.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}
