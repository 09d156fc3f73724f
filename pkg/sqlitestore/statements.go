package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// statements is the fixed set of parameterized operations bound to one table.
// SQLite re-prepares them on its own after the table is recreated.
type statements struct {
	gc          *sql.Stmt
	getActive   *sql.Stmt
	upsert      *sql.Stmt
	destroy     *sql.Stmt
	countActive *sql.Stmt
	countAll    *sql.Stmt
	touch       *sql.Stmt
	listActive  *sql.Stmt
}

func prepareStatements(ctx context.Context, db *sql.DB, s *schema) (*statements, error) {
	st := &statements{}
	defs := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&st.gc, fmt.Sprintf(`DELETE FROM %s WHERE expires_at < ?`, s.ident)},
		{&st.getActive, fmt.Sprintf(`SELECT data FROM %s WHERE id = ? AND expires_at >= ?`, s.ident)},
		{&st.upsert, fmt.Sprintf(`INSERT INTO %s (id, expires_at, data) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				expires_at = excluded.expires_at,
				data = excluded.data`, s.ident)},
		{&st.destroy, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.ident)},
		{&st.countActive, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE expires_at >= ?`, s.ident)},
		{&st.countAll, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.ident)},
		{&st.touch, fmt.Sprintf(`UPDATE %s SET expires_at = ? WHERE id = ? AND expires_at >= ?`, s.ident)},
		{&st.listActive, fmt.Sprintf(`SELECT data FROM %s WHERE expires_at >= ? ORDER BY id`, s.ident)},
	}

	for _, def := range defs {
		stmt, err := db.PrepareContext(ctx, def.query)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("prepare %q: %w", def.query, err)
		}
		*def.dst = stmt
	}
	return st, nil
}

// Close releases every prepared statement; nil entries are skipped.
func (st *statements) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{
		st.gc, st.getActive, st.upsert, st.destroy,
		st.countActive, st.countAll, st.touch, st.listActive,
	} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
