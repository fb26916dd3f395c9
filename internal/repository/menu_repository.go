package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

// MenuRepo persists menu items and categories. Option groups are kept in
// a JSON column since they are always read and written with their item.
type MenuRepo struct{ DB *sql.DB }

func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{DB: db} }

func (r *MenuRepo) ListItems(ctx context.Context) ([]model.MenuItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,name,price,COALESCE(description,''),item_type,category,customizations,created_at,updated_at
		 FROM menu_items ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MenuItem
	for rows.Next() {
		var (
			it   model.MenuItem
			opts sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Description, &it.Type, &it.Category,
			&opts, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		if opts.Valid && opts.String != "" {
			if err := json.Unmarshal([]byte(opts.String), &it.Customizations); err != nil {
				return nil, fmt.Errorf("menu item %s customizations: %w", it.ID, err)
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *MenuRepo) UpsertItem(ctx context.Context, it model.MenuItem) error {
	var opts any
	if len(it.Customizations) > 0 {
		b, err := json.Marshal(it.Customizations)
		if err != nil {
			return err
		}
		opts = string(b)
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO menu_items (id,name,price,description,item_type,category,customizations,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE name=VALUES(name), price=VALUES(price), description=VALUES(description),
		   item_type=VALUES(item_type), category=VALUES(category), customizations=VALUES(customizations),
		   updated_at=VALUES(updated_at)`,
		it.ID, it.Name, it.Price, it.Description, string(it.Type), it.Category, opts,
		it.CreatedAt.UTC(), it.UpdatedAt.UTC())
	return err
}

func (r *MenuRepo) DeleteItem(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM menu_items WHERE id=?", id)
	return err
}

func (r *MenuRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id,name,sort_order FROM categories ORDER BY sort_order, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *MenuRepo) UpsertCategory(ctx context.Context, c model.Category) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO categories (id,name,sort_order) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE name=VALUES(name), sort_order=VALUES(sort_order)`,
		c.ID, c.Name, c.SortOrder)
	return err
}

func (r *MenuRepo) DeleteCategory(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM categories WHERE id=?", id)
	return err
}
