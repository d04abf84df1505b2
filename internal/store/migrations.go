package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "profiles and hotkeys",
		Up: `
CREATE TABLE IF NOT EXISTS profiles (
    name            TEXT PRIMARY KEY,
    ignored_mask    INTEGER NOT NULL DEFAULT 0,
    updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS hotkeys (
    profile     TEXT NOT NULL REFERENCES profiles(name) ON DELETE CASCADE,
    ordinal     INTEGER NOT NULL,
    keyval      INTEGER NOT NULL,
    mask        INTEGER NOT NULL,
    event       TEXT NOT NULL,
    PRIMARY KEY (profile, keyval, mask)
);
`,
		Down: `
DROP TABLE IF EXISTS hotkeys;
DROP TABLE IF EXISTS profiles;
`,
	},
	{
		Version:     2,
		Description: "hotkey event index",
		Up:          `CREATE INDEX IF NOT EXISTS idx_hotkeys_event ON hotkeys(profile, event);`,
		Down:        `DROP INDEX IF EXISTS idx_hotkeys_event;`,
	},
}

func currentVersion(q interface {
	QueryRow(query string, args ...any) *sql.Row
}) (int, error) {
	var v int
	if err := q.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

// migrate applies all pending migrations.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= version {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (s *Store) Rollback() error {
	version, err := currentVersion(s.db)
	if err != nil {
		return err
	}
	if version == 0 {
		return errors.New("no migrations to roll back")
	}

	var m *Migration
	for i := range migrations {
		if migrations[i].Version == version {
			m = &migrations[i]
			break
		}
	}
	if m == nil {
		return fmt.Errorf("migration %d not found", version)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.Down); err != nil {
		return fmt.Errorf("roll back migration %d: %w", version, err)
	}
	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", version); err != nil {
		return fmt.Errorf("remove migration record: %w", err)
	}
	return tx.Commit()
}

// MigrationStatus reports applied and pending schema versions.
type MigrationStatus struct {
	CurrentVersion int
	LatestVersion  int
	Pending        []Migration
	AppliedAt      map[int]time.Time
}

// Status returns the schema migration status.
func (s *Store) Status() (*MigrationStatus, error) {
	status := &MigrationStatus{
		LatestVersion: migrations[len(migrations)-1].Version,
		AppliedAt:     make(map[int]time.Time),
	}

	rows, err := s.db.Query("SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v int
		var at int64
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		status.AppliedAt[v] = time.Unix(0, at)
		if v > status.CurrentVersion {
			status.CurrentVersion = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, m := range migrations {
		if _, ok := status.AppliedAt[m.Version]; !ok {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

// Validate checks that the tables the store relies on exist.
func (s *Store) Validate() error {
	for _, table := range []string{"profiles", "hotkeys", "schema_migrations"} {
		var count int
		err := s.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("missing required table: %s", table)
		}
	}
	return nil
}
