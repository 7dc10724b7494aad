package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	corecfg "github.com/xtal-lab/xtal/internal/core/config"
)

var (
	configPath string
	verbose    bool

	cfg *corecfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "xtal",
	Short: "Inline evaluation for JavaScript documents",
	Long: `xtal evaluates JavaScript source and reports the value of every
top-level expression statement next to the line it came from.

Configuration is read from --config (YAML) and XTAL_* environment variables,
e.g. XTAL_EVALUATION__TIMEOUT=5s.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		// Logs go to stderr so command output on stdout stays clean.
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		loaded, err := corecfg.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, evalCmd, watchCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
