package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	// necessary import to wire up the sqlite driver
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS permissions (
	identity   TEXT NOT NULL,
	command    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (identity, command)
);

CREATE TABLE IF NOT EXISTS blocked_identities (
	identity   TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func NewConnection(databasePath string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite serializes writes; a single connection avoids SQLITE_BUSY errors
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
