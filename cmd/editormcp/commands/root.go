// Package commands provides the CLI commands for editormcp.
package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/localrivet/editormcp/config"
)

// Global flags
var (
	configPath string
	envFile    string
	port       int
	verbose    bool
)

const defaultEnvFile = ".env"

// loaded is the configuration resolved before any subcommand runs.
var loaded config.ServerConfig

var rootCmd = &cobra.Command{
	Use:   "editormcp",
	Short: "editormcp - scene command server for MCP clients",
	Long: `editormcp serves scene commands over TCP to MCP clients and to
legacy {"type": ...} clients.

Run 'editormcp serve' to start a server, or 'editormcp call' to send a
request to a running one.`,
	Version:           config.ServerVersion,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file read before EDITORMCP_* variables")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "TCP port (overrides configuration)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.SetVersionTemplate(fmt.Sprintf("editormcp %s (protocol %s)\n", config.ServerVersion, config.ProtocolVersion))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(legacyCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(_ *cobra.Command, _ []string) error {
	if envFile != "" {
		err := godotenv.Load(envFile)
		// the default file is optional, an explicit one is not
		if err != nil && (envFile != defaultEnvFile || !errors.Is(err, fs.ErrNotExist)) {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}
	if verbose {
		cfg.VerboseLogging = true
	}
	loaded = cfg
	return nil
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	level := slog.LevelInfo
	if cfg.VerboseLogging {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
