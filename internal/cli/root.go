package cli

import (
	"context"
	"fmt"

	"github.com/harun/sqlitestore/internal/config"
	"github.com/harun/sqlitestore/internal/logger"
	"github.com/harun/sqlitestore/internal/observability"
	"github.com/harun/sqlitestore/internal/tracing"
	"github.com/harun/sqlitestore/pkg/sqlitestore"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	dir      string
	filename string
	table    string
	memory   bool

	// populated by loadRuntime before any subcommand runs
	cfg       *config.Config
	appLogger *logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sqlitestore",
	Short: "sqlitestore - expiring session records on SQLite",
	Long: `sqlitestore manages web session records kept in an embedded SQLite
database. Every record carries an expiration time; expired records are
invisible to reads and reclaimed by a periodic sweep.`,
	Version:            version,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  loadRuntime,
	PersistentPostRunE: closeRuntime,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sqlitestore/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dir, "dir", "", "directory holding the database file (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&filename, "filename", "", "database file name (default: sessions.db)")
	rootCmd.PersistentFlags().StringVar(&table, "table", "", "session table name (default: sessions)")
	rootCmd.PersistentFlags().BoolVar(&memory, "memory", false, "use a transient in-memory database")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// loadRuntime loads config, applies flag overrides and builds the process logger
func loadRuntime(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loaded.Logging.Level = logLevel
	}
	if flags.Changed("dir") {
		loaded.Store.Dir = dir
	}
	if flags.Changed("filename") {
		loaded.Store.Filename = filename
	}
	if flags.Changed("table") {
		loaded.Store.Table = table
	}
	if memory {
		loaded.Store.Filename = sqlitestore.MemoryFilename
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.New(logger.Config{
		Level:     loaded.Logging.Level,
		File:      loaded.Logging.File,
		Console:   true,
		Pretty:    loaded.Logging.Pretty,
		Redaction: loaded.Logging.Redaction,
		Out:       cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	if loaded.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(loaded.Logging.AuditFile); err != nil {
			_ = l.Close()
			return fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	if loaded.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(loaded.Tracing.ServiceName, loaded.Tracing.SampleRatio); err != nil {
			_ = l.Close()
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	cfg = loaded
	appLogger = l

	ctx := tracing.WithStore(tracing.NewRequestContext(cmd.Context()), loaded.Store.Table)
	cmd.SetContext(ctx)
	return nil
}

func closeRuntime(cmd *cobra.Command, args []string) error {
	if cfg != nil && cfg.Tracing.Enabled {
		_ = tracing.ShutdownOpenTelemetry(context.Background())
	}
	if appLogger != nil {
		return appLogger.Close()
	}
	return nil
}

// openStore opens the configured store. The periodic sweep only runs for
// long-lived commands.
func openStore(withGC bool) (*sqlitestore.Store, error) {
	zl := appLogger.GetZerolog()
	opts, err := cfg.Store.Options(&zl)
	if err != nil {
		return nil, err
	}
	if !withGC {
		opts.GCInterval = -1
	}
	return sqlitestore.Open(opts)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
