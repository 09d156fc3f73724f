package cli

import (
	"fmt"

	"github.com/harun/sqlitestore/internal/observability"
	"github.com/harun/sqlitestore/pkg/sqlitestore"
	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete expired sessions now",
	Args:  cobra.NoArgs,
	RunE:  runGC,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts and location of the store",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Close the store and delete its database files",
	Long: `Close the store and delete the database file together with its
-journal, -wal and -shm companions. Nothing is removed for in-memory stores.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(gcCmd, statsCmd, purgeCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	return withStore(func(store *sqlitestore.Store) error {
		removed, err := store.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)
		return err
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return withStore(func(store *sqlitestore.Store) error {
		st, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	})
}

func runPurge(cmd *cobra.Command, args []string) error {
	store, err := openStore(false)
	if err != nil {
		return err
	}

	path := store.Path()
	err = store.DeleteBackingFiles()
	observability.RecordStoreAudit(cmd.Context(), "purge", auditActor, err, map[string]interface{}{
		"table": store.Table(),
		"path":  path,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", path)
	return err
}
