package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/harun/sqlitestore/internal/observability"
	_ "github.com/mattn/go-sqlite3"
)

// sidecarSuffixes are the files SQLite may create next to the database,
// depending on the journal mode.
var sidecarSuffixes = []string{"-journal", "-wal", "-shm"}

// Open opens (creating when needed) the database described by opts, applies
// the journal and synchronous pragmas, ensures the record table, prepares
// the statement set and starts the GC schedule.
func Open(opts Options) (*Store, error) {
	observability.EnsureRegistered()

	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	sch, err := newSchema(opts.Table)
	if err != nil {
		return nil, err
	}

	path, inMemory, err := resolvePath(opts.Dir, opts.Filename)
	if err != nil {
		return nil, opError("open", ErrOpen, err)
	}

	logger := opts.Logger.With().
		Str("component", "sqlitestore").
		Str("table", opts.Table).
		Logger()

	ctx := context.Background()
	db, err := sql.Open("sqlite3", dataSourceName(path, opts))
	if err != nil {
		return nil, opError("open", ErrOpen, err)
	}
	// One connection: the engine serializes writers and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, opError("open", ErrOpen, fmt.Errorf("ping %s: %w", path, err))
	}

	journal, err := journalMode(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, opError("open", ErrOpen, err)
	}

	if err := sch.ensureTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, opError("open", ErrOpen, err)
	}

	stmts, err := prepareStatements(ctx, db, sch)
	if err != nil {
		_ = db.Close()
		return nil, opError("open", ErrOpen, err)
	}

	s := &Store{
		db:         db,
		schema:     sch,
		stmts:      stmts,
		serializer: opts.Serializer,
		defaultTTL: opts.DefaultTTL,
		clock:      opts.Clock,
		logger:     logger,
		path:       path,
		inMemory:   inMemory,
	}

	if opts.GCInterval > 0 {
		s.gc = newCollector(s, opts.GCInterval, logger)
		if err := s.gc.start(); err != nil {
			_ = stmts.Close()
			_ = db.Close()
			return nil, opError("open", ErrOpen, err)
		}
	}

	observability.StoreOpened()
	logger.Info().
		Str("path", path).
		Str("journal_mode", journal).
		Str("synchronous", string(opts.Synchronous)).
		Dur("default_ttl", opts.DefaultTTL).
		Msg("Session store opened")

	return s, nil
}

// resolvePath joins dir and filename, defaulting dir to the working directory.
// The in-memory marker never touches the filesystem.
func resolvePath(dir, filename string) (string, bool, error) {
	if filename == MemoryFilename {
		return MemoryFilename, true, nil
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", false, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create directory %s: %w", dir, err)
	}
	path := filepath.Clean(filepath.Join(dir, filename))
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "", false, fmt.Errorf("database path %s is a directory", path)
	}
	return path, false, nil
}

// dataSourceName carries the pragmas as driver parameters so every connection
// the pool dials gets them, not only the first one. The driver strips the
// query from non-URI names, which keeps ":memory:" in-memory.
func dataSourceName(path string, opts Options) string {
	params := url.Values{}
	params.Set("_busy_timeout", strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10))
	params.Set("_journal_mode", string(opts.JournalMode))
	params.Set("_synchronous", string(opts.Synchronous))
	return path + "?" + params.Encode()
}

// journalMode reads back the mode the engine actually selected (in-memory
// databases always report "memory").
func journalMode(ctx context.Context, db *sql.DB) (string, error) {
	var journal string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal); err != nil {
		return "", fmt.Errorf("read journal_mode: %w", err)
	}
	return strings.ToUpper(journal), nil
}

// Close stops the GC schedule and closes the statements and connection.
// Calling it more than once is safe; later calls return the first result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		// stop the schedule first: a running sweep needs the read lock
		if s.gc != nil {
			s.gc.stop()
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true

		var errs []error
		if err := s.stmts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statements: %w", err))
		}
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		s.closeErr = errors.Join(errs...)

		observability.StoreClosed()
		s.logger.Info().Msg("Session store closed")
	})
	return s.closeErr
}

// CloseOnSignal closes the store when one of sigs (default SIGINT, SIGTERM)
// arrives or ctx is cancelled. The returned stop func detaches the hook
// without closing the store. The host still decides when to exit.
func (s *Store) CloseOnSignal(ctx context.Context, sigs ...os.Signal) (stop func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	sigCtx, cancel := signal.NotifyContext(ctx, sigs...)

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		select {
		case <-sigCtx.Done():
			if err := s.Close(); err != nil {
				s.logger.Error().Err(err).Msg("Failed to close session store on shutdown")
			}
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-done
		})
	}
}

// DeleteBackingFiles closes the store and removes the database file and any
// journal sidecars. Missing files count as removed.
func (s *Store) DeleteBackingFiles() error {
	closeErr := s.Close()
	if s.inMemory {
		if closeErr != nil {
			return opError("delete", ErrCleanup, closeErr)
		}
		return nil
	}

	var errs []error
	if closeErr != nil {
		errs = append(errs, closeErr)
	}
	for _, path := range backingFiles(s.path) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return opError("delete", ErrCleanup, errors.Join(errs...))
	}

	s.logger.Info().Str("path", s.path).Msg("Session store files deleted")
	return nil
}

func backingFiles(path string) []string {
	files := []string{path}
	for _, suffix := range sidecarSuffixes {
		files = append(files, path+suffix)
	}
	return files
}
