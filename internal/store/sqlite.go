// Package store persists hotkey profiles in a SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"imbridge/internal/hotkey"
	"imbridge/internal/keysym"
)

// ErrNotFound is returned when a named profile is not stored.
var ErrNotFound = errors.New("profile not found")

// Store is a SQLite-backed profile store.
type Store struct {
	db *sql.DB
}

// ProfileInfo summarizes one stored profile.
type ProfileInfo struct {
	Name      string
	Hotkeys   int
	UpdatedAt time.Time
}

// Open opens or creates the database at path and brings its schema up to
// date.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveProfile stores p under its name, replacing any previous version.
func (s *Store) SaveProfile(p *hotkey.Profile) error {
	if p.Name() == "" {
		return errors.New("save profile: empty name")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO profiles (name, ignored_mask, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET ignored_mask = excluded.ignored_mask, updated_at = excluded.updated_at`,
		p.Name(), int64(p.IgnoredMask()), time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("upsert profile %q: %w", p.Name(), err)
	}

	if _, err := tx.Exec("DELETE FROM hotkeys WHERE profile = ?", p.Name()); err != nil {
		return fmt.Errorf("clear hotkeys of %q: %w", p.Name(), err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO hotkeys (profile, ordinal, keyval, mask, event)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare hotkey insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range p.Entries() {
		if _, err := stmt.Exec(p.Name(), i, int64(e.Keyval), int64(e.Mask), string(e.Event)); err != nil {
			return fmt.Errorf("insert hotkey %s: %w", e.Chord, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile %q: %w", p.Name(), err)
	}
	return nil
}

// LoadProfile rebuilds the named profile.
func (s *Store) LoadProfile(name string) (*hotkey.Profile, error) {
	var mask int64
	err := s.db.QueryRow("SELECT ignored_mask FROM profiles WHERE name = ?", name).Scan(&mask)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query profile %q: %w", name, err)
	}

	rows, err := s.db.Query(`
		SELECT keyval, mask, event FROM hotkeys
		WHERE profile = ? ORDER BY ordinal`, name)
	if err != nil {
		return nil, fmt.Errorf("query hotkeys of %q: %w", name, err)
	}
	defer rows.Close()

	p := hotkey.NewProfile(name, hotkey.WithIgnoredMask(keysym.State(mask)))
	for rows.Next() {
		var k, m int64
		var ev string
		if err := rows.Scan(&k, &m, &ev); err != nil {
			return nil, fmt.Errorf("scan hotkey: %w", err)
		}
		if err := p.Add(keysym.Keyval(k), keysym.State(m), hotkey.EventID(ev)); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read hotkeys of %q: %w", name, err)
	}
	return p, nil
}

// ListProfiles returns the stored profiles ordered by name.
func (s *Store) ListProfiles() ([]ProfileInfo, error) {
	rows, err := s.db.Query(`
		SELECT p.name, p.updated_at, COUNT(h.profile)
		FROM profiles p LEFT JOIN hotkeys h ON h.profile = p.name
		GROUP BY p.name ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []ProfileInfo
	for rows.Next() {
		var info ProfileInfo
		var updated int64
		if err := rows.Scan(&info.Name, &updated, &info.Hotkeys); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		info.UpdatedAt = time.Unix(0, updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteProfile removes the named profile and its hotkeys.
func (s *Store) DeleteProfile(name string) error {
	res, err := s.db.Exec("DELETE FROM profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete profile %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return nil
}
