// Package sqlitestore persists web session records in an embedded SQLite
// database with per-record expiration.
//
// Invariants:
// - One row per session id; set is an upsert.
// - A row is visible only while expires_at >= now, evaluated on every call.
// - The GC sweep deletes only rows with expires_at < now.
// - Clear drops and recreates the table in a single transaction.
// - The table name is validated as a plain identifier before it reaches SQL.
//
// Usage:
//
//	store, _ := sqlitestore.Open(sqlitestore.Options{Dir: "/var/lib/app"})
//	defer store.Close()
//	_ = store.Set("sid", map[string]any{"user": "ada", "cookie": map[string]any{"maxAge": 3600000}})
//	value, found, _ := store.Get("sid")
//	_, _ = value, found
package sqlitestore
