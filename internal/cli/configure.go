package cli

import (
	"fmt"
	"os"

	"github.com/harun/sqlitestore/internal/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var configureCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a config file with the current settings",
	Long: `Write the effective configuration (defaults, environment and flags)
to the config file so it can be edited. An existing file is kept unless
--force is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	configPath := loader.GetConfigPath()

	if _, err := os.Stat(configPath); err == nil && !forceInit {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", configPath)
	return nil
}
