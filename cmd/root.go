// Package cmd provides the CLI commands for thirdtime.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version info (set at build time via ldflags)
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"

	// Global flags
	configPath string
	dbPath     string
	apiAddr    string
	jsonOutput bool
	inlineMode bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "thirdtime",
	Short: "Third Time - work as long as you like, rest in proportion",
	Long: `thirdtime schedules breaks with the Third Time method: each break lasts
a fixed fraction of the work before it, and time you do not use (or
overrun) is carried in a break bank to the next break.

Run "thirdtime" with no arguments to open the interactive timer. While it
runs, the other commands drive it from any terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeServices()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return cleanupServices()
	},
	RunE: runTimer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: ~/.thirdtime/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the database file (default: <data_dir>/thirdtime.db)")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "", "Address of the control API (default: server.addr from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results in JSON format")

	rootCmd.Flags().BoolVarP(&inlineMode, "inline", "i", false, "Compact inline timer (no fullscreen)")
	addTimerFlags(rootCmd)

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("thirdtime\nVersion: {{.Version}}\n")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(endInCmd)
	rootCmd.AddCommand(endAtCmd)
	rootCmd.AddCommand(endNowCmd)
	rootCmd.AddCommand(longBreakCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(bankCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

// setupSignalHandler returns a context that is cancelled on interrupt signals.
func setupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
