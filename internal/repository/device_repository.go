package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

// DeviceOfflineAfter is how long a device may go without a heartbeat
// before it is listed as offline.
const DeviceOfflineAfter = 2 * time.Minute

type DeviceRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewDeviceRepo(db *sql.DB) *DeviceRepo {
	return &DeviceRepo{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *DeviceRepo) Create(ctx context.Context, d model.Device) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO devices (id,name,kind,status,last_seen,created_at) VALUES (?,?,?,?,?,?)",
		d.ID, d.Name, string(d.Kind), "online", d.LastSeen.UTC(), d.CreatedAt.UTC())
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Heartbeat records that a device is alive.
func (r *DeviceRepo) Heartbeat(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE devices SET last_seen=?, status='online' WHERE id=?", r.now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every device with Status derived from its last heartbeat.
func (r *DeviceRepo) List(ctx context.Context) ([]model.Device, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id,name,kind,last_seen,created_at FROM devices ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := r.now()
	var out []model.Device
	for rows.Next() {
		var (
			d    model.Device
			seen sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Kind, &seen, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Status = "offline"
		if seen.Valid {
			d.LastSeen = seen.Time
			if now.Sub(seen.Time) <= DeviceOfflineAfter {
				d.Status = "online"
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
