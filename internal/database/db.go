// Package database opens the MySQL connection that holds the catalog,
// transaction history, devices and staff accounts.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, user, pass, host, port, name string) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + port
	cfg.DBName = name
	// DATETIME columns come back as time.Time in UTC
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	cfg.MultiStatements = false

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql at %s: %w", cfg.Addr, err)
	}
	return db, nil
}

// Migrate creates any missing table. It never alters existing ones.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		display_name VARCHAR(120) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS categories (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		sort_order INT NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(160) NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		description TEXT NULL,
		item_type VARCHAR(16) NOT NULL,
		category VARCHAR(120) NOT NULL DEFAULT '',
		customizations JSON NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id CHAR(36) PRIMARY KEY,
		order_id CHAR(36) NOT NULL,
		order_number VARCHAR(32) NOT NULL,
		source VARCHAR(24) NOT NULL,
		amount DECIMAL(10,2) NOT NULL,
		payment_method VARCHAR(24) NOT NULL,
		status VARCHAR(16) NOT NULL,
		compensates_id CHAR(36) NULL,
		created_at DATETIME NOT NULL,
		INDEX idx_tx_order (order_id),
		INDEX idx_tx_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS transaction_items (
		transaction_id CHAR(36) NOT NULL,
		line_no INT NOT NULL,
		item_id CHAR(36) NOT NULL,
		name VARCHAR(160) NOT NULL,
		item_type VARCHAR(16) NOT NULL,
		quantity INT NOT NULL,
		options JSON NULL,
		unit_price DECIMAL(10,2) NOT NULL,
		total DECIMAL(10,2) NOT NULL,
		PRIMARY KEY (transaction_id, line_no),
		CONSTRAINT fk_item_tx FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS devices (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		kind VARCHAR(24) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'online',
		last_seen DATETIME NULL,
		created_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
