package lookup

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/chazu/vireo/pkg/bytecode"
)

// LibIndex is an on-disk index of library class members: enough metadata
// (flags, superclass links) to answer resolution and accessibility questions
// without loading library bytecode. The index is a plain SQLite database so
// it can be built once per library and shared between compilations.
type LibIndex struct {
	db *sql.DB
}

const libIndexSchema = `
CREATE TABLE IF NOT EXISTS classes (
	name  TEXT PRIMARY KEY,
	super TEXT NOT NULL DEFAULT '',
	flags INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS members (
	owner TEXT NOT NULL,
	name  TEXT NOT NULL,
	desc  TEXT NOT NULL,
	flags INTEGER NOT NULL,
	PRIMARY KEY (owner, name, desc)
);
`

// OpenLibIndex opens (creating if necessary) a library index at path.
// Use ":memory:" for a transient index.
func OpenLibIndex(path string) (*LibIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("lookup: open lib index %s: %w", path, err)
	}
	if _, err := db.Exec(libIndexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("lookup: init lib index schema: %w", err)
	}
	return &LibIndex{db: db}, nil
}

// Close releases the underlying database.
func (ix *LibIndex) Close() error {
	return ix.db.Close()
}

// IndexClass records a class and all its declared members, replacing any
// previous record for the same class.
func (ix *LibIndex) IndexClass(c *bytecode.Class) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("lookup: index %s: %w", c.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO classes (name, super, flags) VALUES (?, ?, ?)`,
		c.Name, c.Super, int64(c.Flags),
	); err != nil {
		return fmt.Errorf("lookup: index class %s: %w", c.Name, err)
	}
	if _, err := tx.Exec(`DELETE FROM members WHERE owner = ?`, c.Name); err != nil {
		return fmt.Errorf("lookup: index class %s: %w", c.Name, err)
	}
	for _, m := range c.Methods {
		if _, err := tx.Exec(
			`INSERT INTO members (owner, name, desc, flags) VALUES (?, ?, ?, ?)`,
			c.Name, m.Name, m.Desc, int64(m.Flags),
		); err != nil {
			return fmt.Errorf("lookup: index member %s.%s%s: %w", c.Name, m.Name, m.Desc, err)
		}
	}
	return tx.Commit()
}

// Class returns the superclass and flags of an indexed class.
func (ix *LibIndex) Class(name string) (super string, flags bytecode.Flags, ok bool, err error) {
	var rawFlags int64
	row := ix.db.QueryRow(`SELECT super, flags FROM classes WHERE name = ?`, name)
	if err := row.Scan(&super, &rawFlags); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, false, nil
		}
		return "", 0, false, fmt.Errorf("lookup: query class %s: %w", name, err)
	}
	return super, bytecode.Flags(rawFlags), true, nil
}

// Member returns the access flags of an indexed member.
func (ix *LibIndex) Member(owner, name, desc string) (bytecode.Flags, bool, error) {
	var rawFlags int64
	row := ix.db.QueryRow(
		`SELECT flags FROM members WHERE owner = ? AND name = ? AND desc = ?`,
		owner, name, desc,
	)
	if err := row.Scan(&rawFlags); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lookup: query member %s.%s%s: %w", owner, name, desc, err)
	}
	return bytecode.Flags(rawFlags), true, nil
}
