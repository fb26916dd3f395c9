package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

type seedFile struct {
	Categories []string   `yaml:"categories"`
	Items      []seedItem `yaml:"items"`
}

type seedItem struct {
	Name        string      `yaml:"name"`
	Price       string      `yaml:"price"`
	Description string      `yaml:"description"`
	Type        string      `yaml:"type"`
	Category    string      `yaml:"category"`
	Options     []seedGroup `yaml:"options"`
}

type seedGroup struct {
	Kind     string       `yaml:"kind"`
	Name     string       `yaml:"name"`
	Required bool         `yaml:"required"`
	Multi    bool         `yaml:"multi"`
	Choices  []seedChoice `yaml:"choices"`
}

type seedChoice struct {
	Label string `yaml:"label"`
	Delta string `yaml:"delta"`
}

// ParseSeed decodes a YAML menu file into categories and items.
func ParseSeed(data []byte) ([]string, []model.MenuItem, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse menu seed: %w", err)
	}
	items := make([]model.MenuItem, 0, len(f.Items))
	for _, si := range f.Items {
		price, err := decimal.NewFromString(si.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("menu seed %q: price: %w", si.Name, err)
		}
		item := model.MenuItem{
			Name:        si.Name,
			Price:       price,
			Description: si.Description,
			Type:        model.ItemType(si.Type),
			Category:    si.Category,
		}
		for _, sg := range si.Options {
			g := model.OptionGroup{
				Kind:     model.OptionKind(sg.Kind),
				Name:     sg.Name,
				Required: sg.Required,
				Multi:    sg.Multi,
			}
			for _, sc := range sg.Choices {
				delta := decimal.Zero
				if sc.Delta != "" {
					if delta, err = decimal.NewFromString(sc.Delta); err != nil {
						return nil, nil, fmt.Errorf("menu seed %q: %s delta: %w", si.Name, sc.Label, err)
					}
				}
				g.Choices = append(g.Choices, model.Choice{Label: sc.Label, PriceDelta: delta})
			}
			item.Customizations = append(item.Customizations, g)
		}
		items = append(items, item)
	}
	return f.Categories, items, nil
}

// SeedFromFile populates an empty catalog from a YAML file. A catalog
// that already has items is left alone.
func (c *Catalog) SeedFromFile(ctx context.Context, path string) (int, error) {
	if path == "" || len(c.Items()) > 0 {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read menu seed: %w", err)
	}
	cats, items, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	if _, err := c.ImportCategories(ctx, cats); err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if _, err := c.CreateItem(ctx, it); err != nil {
			return n, fmt.Errorf("seed %q: %w", it.Name, err)
		}
		n++
	}
	return n, nil
}
