package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

const maxTableNameLen = 64

// SQLite cannot bind identifiers, so table names are checked before they are
// interpolated into statement text.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTableName reports whether name can be used as the record table
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidTableName)
	}
	if len(name) > maxTableNameLen {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidTableName, name, maxTableNameLen)
	}
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must start with a letter or underscore and contain only letters, digits and underscores", ErrInvalidTableName, name)
	}
	return nil
}

// schema owns the on-disk shape of the record table
type schema struct {
	table string
	ident string // quoted form used in SQL text
	index string
}

func newSchema(table string) (*schema, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	return &schema{
		table: table,
		ident: `"` + table + `"`,
		index: `"` + table + `_expires_at_idx"`,
	}, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *schema) createStatements() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL,
			data BLOB
		)`, s.ident),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(expires_at)`, s.index, s.ident),
	}
}

// ensureTable creates the table and its expiry index when missing
func (s *schema) ensureTable(ctx context.Context, db execer) error {
	for _, stmt := range s.createStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", s.table, err)
		}
	}
	return nil
}

// dropTable removes the table (and with it the index) when present
func (s *schema) dropTable(ctx context.Context, db execer) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.ident)); err != nil {
		return fmt.Errorf("drop table %s: %w", s.table, err)
	}
	return nil
}

// recreate drops and recreates the table in one transaction so readers never
// observe a missing table.
func (s *schema) recreate(ctx context.Context, db *sql.DB) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recreate: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.dropTable(ctx, tx); err != nil {
		return err
	}
	if err = s.ensureTable(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit recreate: %w", err)
	}
	return nil
}
