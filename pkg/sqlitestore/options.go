package sqlitestore

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MemoryFilename selects a transient in-memory database; no file is created.
	MemoryFilename = ":memory:"

	DefaultFilename    = "sessions.db"
	DefaultTable       = "sessions"
	DefaultTTL         = 24 * time.Hour
	DefaultJournal     = JournalModeWAL
	DefaultSyncMode    = SynchronousNormal
	DefaultBusyTimeout = 5 * time.Second
)

// JournalMode is the SQLite journal_mode pragma value
type JournalMode string

const (
	JournalModeDelete   JournalMode = "DELETE"
	JournalModeTruncate JournalMode = "TRUNCATE"
	JournalModePersist  JournalMode = "PERSIST"
	JournalModeMemory   JournalMode = "MEMORY"
	JournalModeWAL      JournalMode = "WAL"
	JournalModeOff      JournalMode = "OFF"
)

// SynchronousMode is the SQLite synchronous pragma value
type SynchronousMode string

const (
	SynchronousOff    SynchronousMode = "OFF"
	SynchronousNormal SynchronousMode = "NORMAL"
	SynchronousFull   SynchronousMode = "FULL"
	SynchronousExtra  SynchronousMode = "EXTRA"
)

// ParseJournalMode accepts any casing of a journal mode name
func ParseJournalMode(s string) (JournalMode, error) {
	mode := JournalMode(strings.ToUpper(strings.TrimSpace(s)))
	switch mode {
	case JournalModeDelete, JournalModeTruncate, JournalModePersist,
		JournalModeMemory, JournalModeWAL, JournalModeOff:
		return mode, nil
	}
	return "", fmt.Errorf("%w: unknown journal mode %q", ErrInvalidOption, s)
}

// ParseSynchronousMode accepts any casing of a synchronous mode name
func ParseSynchronousMode(s string) (SynchronousMode, error) {
	mode := SynchronousMode(strings.ToUpper(strings.TrimSpace(s)))
	switch mode {
	case SynchronousOff, SynchronousNormal, SynchronousFull, SynchronousExtra:
		return mode, nil
	}
	return "", fmt.Errorf("%w: unknown synchronous mode %q", ErrInvalidOption, s)
}

// Options configures a Store. The zero value of every field selects its default.
type Options struct {
	// Dir is where the database file lives (default: current working directory)
	Dir string
	// Filename of the database file, or MemoryFilename
	Filename string
	// Table holding the session records
	Table string
	// DefaultTTL applies when a value carries no max-age hint
	DefaultTTL time.Duration
	// Serializer encodes session values (default: JSONSerializer)
	Serializer  Serializer
	JournalMode JournalMode
	Synchronous SynchronousMode
	// BusyTimeout is how long the engine waits on a locked database
	BusyTimeout time.Duration
	// GCInterval between sweeps; zero uses DefaultTTL, negative disables the timer
	GCInterval time.Duration
	// Logger receives lifecycle and sweep events (default: disabled)
	Logger *zerolog.Logger
	// Clock returns the current time; tests override it
	Clock func() time.Time
}

// withDefaults fills unset fields and validates the rest
func (o Options) withDefaults() (Options, error) {
	if o.Filename == "" {
		o.Filename = DefaultFilename
	}
	if o.Table == "" {
		o.Table = DefaultTable
	}
	if err := ValidateTableName(o.Table); err != nil {
		return o, err
	}
	if o.DefaultTTL == 0 {
		o.DefaultTTL = DefaultTTL
	}
	if o.DefaultTTL < 0 {
		return o, fmt.Errorf("%w: default ttl must be positive, got %s", ErrInvalidOption, o.DefaultTTL)
	}
	if o.Serializer == nil {
		o.Serializer = JSONSerializer{}
	}

	if o.JournalMode == "" {
		o.JournalMode = DefaultJournal
	}
	mode, err := ParseJournalMode(string(o.JournalMode))
	if err != nil {
		return o, err
	}
	o.JournalMode = mode

	if o.Synchronous == "" {
		o.Synchronous = DefaultSyncMode
	}
	syncMode, err := ParseSynchronousMode(string(o.Synchronous))
	if err != nil {
		return o, err
	}
	o.Synchronous = syncMode

	if o.BusyTimeout == 0 {
		o.BusyTimeout = DefaultBusyTimeout
	}
	if o.BusyTimeout < 0 {
		return o, fmt.Errorf("%w: busy timeout must not be negative", ErrInvalidOption)
	}
	if o.GCInterval == 0 {
		o.GCInterval = o.DefaultTTL
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o, nil
}
