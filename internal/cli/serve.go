package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/sqlitestore/internal/config"
	"github.com/harun/sqlitestore/internal/observability"
	"github.com/harun/sqlitestore/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var metricsListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep the store open, sweeping expired sessions on schedule",
	Long: `Open the store with its periodic sweep running and expose Prometheus
metrics until SIGINT or SIGTERM arrives. Log level changes in the config
file are applied without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "metrics listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := tracing.LoggerFromContext(ctx, appLogger.GetZerolog())

	store, err := openStore(true)
	if err != nil {
		return err
	}
	detach := store.CloseOnSignal(ctx)
	defer func() {
		detach()
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close session store")
		}
	}()

	var srv *http.Server
	if cfg.Metrics.Enabled {
		addr := cfg.Metrics.Listen
		if metricsListen != "" {
			addr = metricsListen
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, observability.MetricsHandler())
		srv = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		log.Info().
			Str("addr", ln.Addr().String()).
			Str("path", cfg.Metrics.Path).
			Msg("Serving metrics")
		fmt.Fprintf(cmd.OutOrStdout(), "metrics on http://%s%s\n", ln.Addr(), cfg.Metrics.Path)
	}

	watchConfig(log)

	log.Info().Str("path", store.Path()).Msg("Session store serving")
	<-ctx.Done()
	log.Info().Msg("Shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown incomplete")
		}
	}
	return nil
}

// watchConfig applies log level changes from the config file while serving
func watchConfig(log zerolog.Logger) {
	loader := config.NewLoader(cfgFile)
	err := loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid config change")
			return
		}
		if err := appLogger.SetLevel(next.Logging.Level); err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid log level")
			return
		}
		log.Info().Str("level", next.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		log.Warn().Err(err).Msg("Config watch unavailable")
	}
}
