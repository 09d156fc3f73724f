package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/sqlitestore/internal/observability"
	"github.com/harun/sqlitestore/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "sqlitestore"

// SessionStore is the contract consumed by a session-management layer.
// Absent or expired records are reported with found == false and a nil error.
type SessionStore interface {
	GetWithContext(ctx context.Context, id string) (value any, found bool, err error)
	SetWithContext(ctx context.Context, id string, value any) error
	DestroyWithContext(ctx context.Context, id string) error
	TouchWithContext(ctx context.Context, id string, value any) error
	LengthWithContext(ctx context.Context) (int, error)
	AllWithContext(ctx context.Context) ([]any, error)
	ClearWithContext(ctx context.Context) error
}

// Stats is a point-in-time view of the record table
type Stats struct {
	Table    string `json:"table"`
	Path     string `json:"path"`
	InMemory bool   `json:"in_memory"`
	Total    int    `json:"total"`
	Active   int    `json:"active"`
	// Expired rows are invisible to readers but not yet reclaimed by a sweep
	Expired int `json:"expired"`
}

// Store is an expiring session record store on a single SQLite connection
type Store struct {
	db         *sql.DB
	schema     *schema
	stmts      *statements
	serializer Serializer
	defaultTTL time.Duration
	clock      func() time.Time
	logger     zerolog.Logger
	path       string
	inMemory   bool
	gc         *collector

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

var _ SessionStore = (*Store)(nil)

// Table returns the record table name
func (s *Store) Table() string {
	return s.schema.table
}

// Path returns the database file path, or MemoryFilename for in-memory stores
func (s *Store) Path() string {
	return s.path
}

// InMemory reports whether the store is backed by a transient database
func (s *Store) InMemory() bool {
	return s.inMemory
}

func (s *Store) nowMillis() int64 {
	return s.clock().UnixMilli()
}

// begin acquires the store for one operation and starts its span. The returned
// finish func must be called exactly once with the operation's error.
func (s *Store) begin(ctx context.Context, op string) (context.Context, func(error), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithStore(ctx, s.schema.table)
	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"sqlitestore."+op,
		attribute.String("db.system", "sqlite"),
		attribute.String("db.sql.table", s.schema.table),
	)
	start := time.Now()

	s.mu.RLock()
	finish := func(err error) {
		s.mu.RUnlock()
		observability.RecordOperation(s.schema.table, op, time.Since(start), err == nil)
		tracing.FinishSpan(span, err)
	}
	if s.closed {
		err := opError(op, ErrClosed, nil)
		finish(err)
		return ctx, nil, err
	}
	return ctx, finish, nil
}

func (s *Store) decode(op string, data []byte) (any, error) {
	value, err := s.serializer.Decode(data)
	if err != nil {
		observability.RecordDecodeError(s.schema.table)
		return nil, opError(op, ErrDecode, err)
	}
	return value, nil
}

func (s *Store) expiresAt(value any, encode func() ([]byte, error)) int64 {
	return addMillis(s.nowMillis(), ttlFor(value, encode, s.defaultTTL).Milliseconds())
}

// Get returns the active record for id
func (s *Store) Get(id string) (any, bool, error) {
	return s.GetWithContext(context.Background(), id)
}

// GetWithContext returns the decoded value of the active record for id.
// found is false when no row exists or the row has expired.
func (s *Store) GetWithContext(ctx context.Context, id string) (value any, found bool, err error) {
	ctx, finish, err := s.begin(ctx, "get")
	if err != nil {
		return nil, false, err
	}
	defer func() { finish(err) }()

	if id == "" {
		return nil, false, opError("get", ErrInvalidID, nil)
	}

	var data []byte
	err = s.stmts.getActive.QueryRowContext(ctx, id, s.nowMillis()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, opError("get", ErrExecute, err)
	}

	value, err = s.decode("get", data)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under id
func (s *Store) Set(id string, value any) error {
	return s.SetWithContext(context.Background(), id, value)
}

// SetWithContext serializes value and upserts it with a fresh expiry taken
// from the value's max-age hint or the store default.
func (s *Store) SetWithContext(ctx context.Context, id string, value any) (err error) {
	ctx, finish, err := s.begin(ctx, "set")
	if err != nil {
		return err
	}
	defer func() { finish(err) }()

	if id == "" {
		return opError("set", ErrInvalidID, nil)
	}

	data, err := s.serializer.Encode(value)
	if err != nil {
		return opError("set", ErrEncode, err)
	}
	expiresAt := s.expiresAt(value, func() ([]byte, error) { return data, nil })

	if _, err = s.stmts.upsert.ExecContext(ctx, id, expiresAt, data); err != nil {
		return opError("set", ErrExecute, err)
	}
	return nil
}

// Destroy removes the record for id
func (s *Store) Destroy(id string) error {
	return s.DestroyWithContext(context.Background(), id)
}

// DestroyWithContext deletes the row for id whether or not it has expired.
// A missing row is not an error.
func (s *Store) DestroyWithContext(ctx context.Context, id string) (err error) {
	ctx, finish, err := s.begin(ctx, "destroy")
	if err != nil {
		return err
	}
	defer func() { finish(err) }()

	if id == "" {
		return opError("destroy", ErrInvalidID, nil)
	}
	if _, err = s.stmts.destroy.ExecContext(ctx, id); err != nil {
		return opError("destroy", ErrExecute, err)
	}
	return nil
}

// Touch extends the expiry of an active record
func (s *Store) Touch(id string, value any) error {
	return s.TouchWithContext(context.Background(), id, value)
}

// TouchWithContext recomputes the expiry of id from value and applies it only
// if an active row exists. Expired or missing rows are left alone; touch never
// creates a row and never rewrites the stored payload.
func (s *Store) TouchWithContext(ctx context.Context, id string, value any) (err error) {
	ctx, finish, err := s.begin(ctx, "touch")
	if err != nil {
		return err
	}
	defer func() { finish(err) }()

	if id == "" {
		return opError("touch", ErrInvalidID, nil)
	}

	expiresAt := s.expiresAt(value, func() ([]byte, error) { return s.serializer.Encode(value) })
	if _, err = s.stmts.touch.ExecContext(ctx, expiresAt, id, s.nowMillis()); err != nil {
		return opError("touch", ErrExecute, err)
	}
	return nil
}

// Length returns the number of active records
func (s *Store) Length() (int, error) {
	return s.LengthWithContext(context.Background())
}

// LengthWithContext counts the records that are active at call time
func (s *Store) LengthWithContext(ctx context.Context) (n int, err error) {
	ctx, finish, err := s.begin(ctx, "length")
	if err != nil {
		return 0, err
	}
	defer func() { finish(err) }()

	if err = s.stmts.countActive.QueryRowContext(ctx, s.nowMillis()).Scan(&n); err != nil {
		return 0, opError("length", ErrExecute, err)
	}
	observability.SetActiveSessions(s.schema.table, n)
	return n, nil
}

// All returns every active value ordered by id
func (s *Store) All() ([]any, error) {
	return s.AllWithContext(context.Background())
}

// AllWithContext decodes every active record, ordered by id. A single decode
// failure fails the whole call; no partial result is returned.
func (s *Store) AllWithContext(ctx context.Context) (values []any, err error) {
	ctx, finish, err := s.begin(ctx, "all")
	if err != nil {
		return nil, err
	}
	defer func() { finish(err) }()

	rows, err := s.stmts.listActive.QueryContext(ctx, s.nowMillis())
	if err != nil {
		return nil, opError("all", ErrExecute, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	values = make([]any, 0)
	for rows.Next() {
		var data []byte
		if err = rows.Scan(&data); err != nil {
			return nil, opError("all", ErrExecute, err)
		}
		value, decodeErr := s.decode("all", data)
		if decodeErr != nil {
			err = decodeErr
			return nil, err
		}
		values = append(values, value)
	}
	if err = rows.Err(); err != nil {
		return nil, opError("all", ErrExecute, err)
	}
	return values, nil
}

// Clear removes every record
func (s *Store) Clear() error {
	return s.ClearWithContext(context.Background())
}

// ClearWithContext drops and recreates the record table in one transaction,
// removing active and expired rows alike.
func (s *Store) ClearWithContext(ctx context.Context) (err error) {
	ctx, finish, err := s.begin(ctx, "clear")
	if err != nil {
		return err
	}
	defer func() { finish(err) }()

	if err = s.schema.recreate(ctx, s.db); err != nil {
		return opError("clear", ErrExecute, err)
	}
	observability.SetActiveSessions(s.schema.table, 0)
	return nil
}

// Stats counts total, active and expired-but-unreclaimed rows
func (s *Store) Stats(ctx context.Context) (st Stats, err error) {
	ctx, finish, err := s.begin(ctx, "stats")
	if err != nil {
		return Stats{}, err
	}
	defer func() { finish(err) }()

	st = Stats{Table: s.schema.table, Path: s.path, InMemory: s.inMemory}
	if err = s.stmts.countAll.QueryRowContext(ctx).Scan(&st.Total); err != nil {
		return Stats{}, opError("stats", ErrExecute, err)
	}
	if err = s.stmts.countActive.QueryRowContext(ctx, s.nowMillis()).Scan(&st.Active); err != nil {
		return Stats{}, opError("stats", ErrExecute, err)
	}
	st.Expired = st.Total - st.Active
	if st.Expired < 0 {
		// a row may have been written between the two counts
		st.Expired = 0
	}
	return st, nil
}

// Sweep deletes every row that expired before now and returns how many were
// removed. It runs on the GC schedule and may also be called directly.
func (s *Store) Sweep(ctx context.Context) (removed int64, err error) {
	ctx, finish, err := s.begin(ctx, "sweep")
	if err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() {
		observability.RecordSweep(s.schema.table, time.Since(start), removed, err)
		finish(err)
	}()

	res, err := s.stmts.gc.ExecContext(ctx, s.nowMillis())
	if err != nil {
		return 0, opError("sweep", ErrExecute, err)
	}
	removed, err = res.RowsAffected()
	if err != nil {
		return 0, opError("sweep", ErrExecute, fmt.Errorf("rows affected: %w", err))
	}
	return removed, nil
}
