package model

import "time"

// TableStatus is the occupancy state of a physical table.
type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
	TableWaiting   TableStatus = "waiting"
)

// Reservation is a booking held against a table.
type Reservation struct {
	Name     string    `json:"name"`
	Phone    string    `json:"phone,omitempty"`
	Guests   int       `json:"guests"`
	At       time.Time `json:"at"`
	Reminded bool      `json:"reminded"`
}

// Table is a physical table on the floor. Occupancy fields (Guests,
// OccupiedAt, EndsAt, Overdue) and Reservation are never populated at the
// same time.
type Table struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Capacity    int          `json:"capacity" yaml:"capacity"`
	Status      TableStatus  `json:"status" yaml:"-"`
	Guests      int          `json:"guests,omitempty" yaml:"-"`
	OccupiedAt  *time.Time   `json:"occupied_at,omitempty" yaml:"-"`
	EndsAt      *time.Time   `json:"ends_at,omitempty" yaml:"-"`
	Overdue     bool         `json:"overdue,omitempty" yaml:"-"`
	Reservation *Reservation `json:"reservation,omitempty" yaml:"-"`
}

// Reset returns the table to available and clears every occupancy and
// reservation field in one step.
func (t *Table) Reset() {
	t.Status = TableAvailable
	t.Guests = 0
	t.OccupiedAt = nil
	t.EndsAt = nil
	t.Overdue = false
	t.Reservation = nil
}

// WaitingEntry is a party waiting for a free table.
type WaitingEntry struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone,omitempty"`
	Guests  int       `json:"guests"`
	AddedAt time.Time `json:"added_at"`
}

// NoShow records a reservation that was never checked in.
type NoShow struct {
	TableID     string    `json:"table_id"`
	TableName   string    `json:"table_name"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	ReservedFor time.Time `json:"reserved_for"`
	RecordedAt  time.Time `json:"recorded_at"`
}
