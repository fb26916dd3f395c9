package model

import "time"

// Staff roles carried in the JWT "role" claim. OWNER manages the
// catalog, devices and reports; STAFF runs the floor.
const (
	RoleOwner = "OWNER"
	RoleStaff = "STAFF"
)

// User is a staff account as stored in the `users` table.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique login address.
//	DisplayName  – name shown on receipts and the terminal header.
//	PasswordHash – bcrypt hash.
//	Role         – OWNER or STAFF.
//	IsActive     – disabled accounts cannot sign in.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken models a row of `refresh_tokens`. Only the SHA-256 hash
// of the raw token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
