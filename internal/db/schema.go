package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    seq                  INTEGER PRIMARY KEY,
    id                   TEXT NOT NULL UNIQUE,
    qr_code              TEXT NOT NULL,
    client_name          TEXT NOT NULL,
    client_phone         TEXT NOT NULL,
    client_email         TEXT NOT NULL DEFAULT '',
    description          TEXT NOT NULL,
    department           TEXT NOT NULL CHECK (department IN ('documents', 'photos', 'other')),
    deposit_amount       INTEGER NOT NULL CHECK (deposit_amount >= 0),
    return_amount        INTEGER NOT NULL CHECK (return_amount >= 0),
    deposit_date         TEXT NOT NULL,
    expected_return_date TEXT NOT NULL,
    discount             INTEGER NOT NULL DEFAULT 0 CHECK (discount BETWEEN 0 AND 100),
    bonus_card           TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'stored' CHECK (status IN ('stored', 'returned')),
    accepted_by          TEXT NOT NULL DEFAULT '',
    returned_by          TEXT NOT NULL DEFAULT '',
    created_at           DATETIME NOT NULL,
    returned_at          DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_qr_code ON items(qr_code);

CREATE INDEX IF NOT EXISTS idx_items_department_status ON items(department, status);

CREATE TABLE IF NOT EXISTS users (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    phone      TEXT NOT NULL DEFAULT '',
    email      TEXT NOT NULL DEFAULT '',
    role       TEXT NOT NULL CHECK (role IN ('client', 'cashier', 'head_cashier', 'admin', 'creator', 'nikitovsky')),
    is_active  BOOLEAN NOT NULL DEFAULT 1,
    created_by TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS role_passwords (
    role          TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sms_notifications (
    id              INTEGER PRIMARY KEY,
    recipient_phone TEXT NOT NULL,
    message         TEXT NOT NULL,
    item_id         TEXT REFERENCES items(id),
    sent_by         TEXT NOT NULL DEFAULT '',
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations are applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: archive listings filter on status alone.
	`CREATE INDEX IF NOT EXISTS idx_items_status ON items(status)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist
// and applies pending migrations.
func EnsureSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
