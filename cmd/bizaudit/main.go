package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/common"
)

var (
	// Command-line flags
	configFiles []string // Multiple --config flags supported, later files override earlier ones
	serverPort  int
	serverHost  string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "bizaudit",
	Short: "Generate structured business audit reports with an LLM",
	Long: `BizAudit turns a short business profile into a structured audit report.
Run without a subcommand to start the HTTP server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times)")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")

	rootCmd.AddCommand(serveCmd, auditCmd, versionCmd)
}

func main() {
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		// Falls back to a console logger when configuration never loaded
		common.GetLogger().Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence shared by every command:
// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
// 2. Apply CLI overrides (highest priority)
// 3. Initialize logger
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("bizaudit.toml"); err == nil {
			configFiles = append(configFiles, "bizaudit.toml")
		} else if _, err := os.Stat("deployments/local/bizaudit.toml"); err == nil {
			// Fallback for running from the project root
			configFiles = append(configFiles, "deployments/local/bizaudit.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	common.InstallCrashHandler(config.Logging.Dir)
	logger = common.InitLogger(config)

	if config.IsProduction() && config.Storage.Badger.ResetOnStartup {
		logger.Warn().Msg("Ignoring storage.badger.reset_on_startup in production")
		config.Storage.Badger.ResetOnStartup = false
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("storage_path", config.Storage.Badger.Path).
		Str("provider", string(config.LLM.DefaultProvider)).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")

	return nil
}
