package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"relaybot/core"
)

type SQLitePermissionsRepository struct {
	db *sqlx.DB
}

func NewSQLitePermissionsRepository(db *sqlx.DB) *SQLitePermissionsRepository {
	return &SQLitePermissionsRepository{db: db}
}

// GetAllPermissions loads the full identity -> command-set mapping. Called
// once at startup to seed the in-memory state.
func (r *SQLitePermissionsRepository) GetAllPermissions() (map[string][]string, error) {
	type row struct {
		Identity string `db:"identity"`
		Command  string `db:"command"`
	}

	var rows []row
	if err := r.db.Select(&rows, "SELECT identity, command FROM permissions"); err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}

	permissions := make(map[string][]string)
	for _, row := range rows {
		permissions[row.Identity] = append(permissions[row.Identity], row.Command)
	}
	return permissions, nil
}

func (r *SQLitePermissionsRepository) GrantCommand(identity, command string) error {
	query := "INSERT OR IGNORE INTO permissions (identity, command) VALUES (?, ?)"
	if _, err := r.db.Exec(query, identity, command); err != nil {
		return fmt.Errorf("failed to grant command: %w", err)
	}
	return nil
}

// RevokeCommand deletes a grant. Returns core.ErrNotFound when no row
// matched, so callers can distinguish a missing grant from a failed delete.
func (r *SQLitePermissionsRepository) RevokeCommand(identity, command string) error {
	query := "DELETE FROM permissions WHERE identity = ? AND command = ?"
	result, err := r.db.Exec(query, identity, command)
	if err != nil {
		return fmt.Errorf("failed to revoke command: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read revoke result: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLitePermissionsRepository) GetBlockedIdentities() ([]string, error) {
	var identities []string
	if err := r.db.Select(&identities, "SELECT identity FROM blocked_identities"); err != nil {
		return nil, fmt.Errorf("failed to load blocked identities: %w", err)
	}
	return identities, nil
}

func (r *SQLitePermissionsRepository) BlockIdentity(identity string) error {
	query := "INSERT OR IGNORE INTO blocked_identities (identity) VALUES (?)"
	if _, err := r.db.Exec(query, identity); err != nil {
		return fmt.Errorf("failed to block identity: %w", err)
	}
	return nil
}

func (r *SQLitePermissionsRepository) UnblockIdentity(identity string) error {
	query := "DELETE FROM blocked_identities WHERE identity = ?"
	if _, err := r.db.Exec(query, identity); err != nil {
		return fmt.Errorf("failed to unblock identity: %w", err)
	}
	return nil
}
