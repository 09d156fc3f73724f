package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/harun/sqlitestore/internal/observability"
	"github.com/harun/sqlitestore/internal/tracing"
	"github.com/harun/sqlitestore/pkg/sqlitestore"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"
)

// sessionIDLength matches the 21-char ids of common session middleware
const sessionIDLength = 21

// auditActor tags audit events emitted from the command line
const auditActor = "cli"

// ErrSessionNotFound is returned by get for an absent or expired id
var ErrSessionNotFound = errors.New("session not found")

var (
	setID     string
	setMaxAge time.Duration
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print an active session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <json>",
	Short: "Create or replace a session",
	Long: `Create or replace a session and print its id.
A new id is generated unless --id is given. The lifetime comes from
cookie.maxAge (milliseconds) in the value, --max-age, or the store default.`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

var touchCmd = &cobra.Command{
	Use:   "touch <id> <json>",
	Short: "Extend a session's expiration without rewriting its data",
	Args:  cobra.ExactArgs(2),
	RunE:  runTouch,
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runDestroy,
}

var lengthCmd = &cobra.Command{
	Use:   "length",
	Short: "Print the number of active sessions",
	Args:  cobra.NoArgs,
	RunE:  runLength,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all active sessions as a JSON array ordered by id",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every session by recreating the table",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	setCmd.Flags().StringVar(&setID, "id", "", "session id (default: generated)")
	setCmd.Flags().DurationVar(&setMaxAge, "max-age", 0, "session lifetime, stored as cookie.maxAge")

	rootCmd.AddCommand(getCmd, setCmd, touchCmd, destroyCmd, lengthCmd, listCmd, clearCmd)
}

// auditSessionID names a session in the audit log without recording the id,
// which is a bearer credential
func auditSessionID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}

// withStore opens the store for a one-shot command and always closes it
func withStore(fn func(store *sqlitestore.Store) error) (err error) {
	store, err := openStore(false)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()
	return fn(store)
}

func runGet(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withStore(func(store *sqlitestore.Store) error {
		value, found, err := store.GetWithContext(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return printJSON(cmd.OutOrStdout(), value)
	})
}

func runSet(cmd *cobra.Command, args []string) error {
	value, err := parseValue(args[0])
	if err != nil {
		return err
	}
	if setMaxAge != 0 {
		if value, err = withMaxAge(value, setMaxAge); err != nil {
			return err
		}
	}

	id := setID
	if id == "" {
		if id, err = gonanoid.New(sessionIDLength); err != nil {
			return fmt.Errorf("failed to generate session id: %w", err)
		}
	}

	return withStore(func(store *sqlitestore.Store) error {
		if err := store.SetWithContext(cmd.Context(), id, value); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), id)
		return err
	})
}

func runTouch(cmd *cobra.Command, args []string) error {
	value, err := parseValue(args[1])
	if err != nil {
		return err
	}
	return withStore(func(store *sqlitestore.Store) error {
		return store.TouchWithContext(cmd.Context(), args[0], value)
	})
}

func runDestroy(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withStore(func(store *sqlitestore.Store) error {
		err := store.DestroyWithContext(cmd.Context(), id)
		observability.RecordStoreAudit(cmd.Context(), "destroy", auditActor, err, map[string]interface{}{
			"table":     store.Table(),
			"id_sha256": auditSessionID(id),
		})
		return err
	})
}

func runLength(cmd *cobra.Command, args []string) error {
	return withStore(func(store *sqlitestore.Store) error {
		n, err := store.LengthWithContext(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
		return err
	})
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(store *sqlitestore.Store) error {
		values, err := store.AllWithContext(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), values)
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	return withStore(func(store *sqlitestore.Store) error {
		err := store.ClearWithContext(cmd.Context())
		observability.RecordStoreAudit(cmd.Context(), "clear", auditActor, err, map[string]interface{}{
			"table": store.Table(),
		})
		if err == nil {
			log := tracing.LoggerFromContext(cmd.Context(), appLogger.GetZerolog())
			log.Info().Msg("All sessions cleared")
		}
		return err
	})
}
