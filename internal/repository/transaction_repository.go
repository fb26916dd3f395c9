package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

// TransactionRepo is the system of record for sales. It is written by
// the checkout outbox and read back on boot to seed reports.
type TransactionRepo struct{ DB *sql.DB }

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{DB: db} }

// SaveTransaction upserts the header and replaces its lines in one
// database transaction. Saving the same transaction twice is harmless,
// and saving it again with a new status records a void or refund.
func (r *TransactionRepo) SaveTransaction(ctx context.Context, t model.Transaction) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var comp any
	if t.CompensatesID != "" {
		comp = t.CompensatesID
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id,order_id,order_number,source,amount,payment_method,status,compensates_id,created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE status=IF(status IN ('pending','completed'), VALUES(status), status)`,
		t.ID, t.OrderID, t.OrderNumber, string(t.Source), t.Amount, string(t.PaymentMethod),
		string(t.Status), comp, t.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("save transaction %s: %w", t.ID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM transaction_items WHERE transaction_id=?", t.ID); err != nil {
		return fmt.Errorf("save transaction %s lines: %w", t.ID, err)
	}
	for i, l := range t.Lines {
		opts, merr := json.Marshal(l.Options)
		if merr != nil {
			err = merr
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO transaction_items (transaction_id,line_no,item_id,name,item_type,quantity,options,unit_price,total)
			 VALUES (?,?,?,?,?,?,?,?,?)`,
			t.ID, i, l.ItemID, l.Name, string(l.Type), l.Quantity, string(opts), l.UnitPrice, l.Total); err != nil {
			return fmt.Errorf("save transaction %s line %d: %w", t.ID, i, err)
		}
	}
	return tx.Commit()
}

// ListSince returns transactions created at or after since, oldest
// first, with their lines.
func (r *TransactionRepo) ListSince(ctx context.Context, since time.Time) ([]model.Transaction, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,order_id,order_number,source,amount,payment_method,status,COALESCE(compensates_id,''),created_at
		 FROM transactions WHERE created_at >= ? ORDER BY created_at, id`, since.UTC())
	if err != nil {
		return nil, err
	}
	var (
		out   []model.Transaction
		index = map[string]int{}
	)
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.OrderID, &t.OrderNumber, &t.Source, &t.Amount, &t.PaymentMethod,
			&t.Status, &t.CompensatesID, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	lines, err := r.DB.QueryContext(ctx,
		`SELECT ti.transaction_id,ti.item_id,ti.name,ti.item_type,ti.quantity,ti.options,ti.unit_price,ti.total
		 FROM transaction_items ti JOIN transactions t ON t.id = ti.transaction_id
		 WHERE t.created_at >= ? ORDER BY ti.transaction_id, ti.line_no`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer lines.Close()
	for lines.Next() {
		var (
			txID string
			l    model.OrderLine
			opts sql.NullString
		)
		if err := lines.Scan(&txID, &l.ItemID, &l.Name, &l.Type, &l.Quantity, &opts, &l.UnitPrice, &l.Total); err != nil {
			return nil, err
		}
		if opts.Valid && opts.String != "" && opts.String != "null" {
			if err := json.Unmarshal([]byte(opts.String), &l.Options); err != nil {
				return nil, fmt.Errorf("transaction %s options: %w", txID, err)
			}
		}
		if i, ok := index[txID]; ok {
			out[i].Lines = append(out[i].Lines, l)
		}
	}
	return out, lines.Err()
}
