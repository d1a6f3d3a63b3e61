// Package main implements the gtmvars CLI: a terminal popup over the Google
// Tag Manager variables page open in Chrome.
package main

import (
	"fmt"
	"os"
	"time"

	"gtmvars/internal/config"
	"gtmvars/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	debuggerURL string
	openURL     string
	timeout     time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gtmvars",
	Short: "Inspect, search, export and clean up Google Tag Manager variables",
	Long: `gtmvars attaches to Chrome over the DevTools protocol, reads the user-defined
variables on the open Tag Manager variables page, and looks up which tags,
triggers and variables reference each one.

Run without arguments to open the interactive popup.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		if err := logging.Initialize(config.StateDir, logging.Settings{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.IsJSON(),
			Categories: cfg.Logging.Categories,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if err := logging.InitAudit(); err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Boot("gtmvars %s starting (config=%s)", cmd.Name(), configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
		logging.CloseAll()
	},
	RunE: runPopup,
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debuggerURL != "" {
		c.Browser.DebuggerURL = debuggerURL
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: .gtmvars/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&debuggerURL, "debugger-url", "", "DevTools WebSocket URL of a running Chrome (or set GTMVARS_DEBUGGER_URL)")
	rootCmd.PersistentFlags().StringVar(&openURL, "open", "", "Open this URL in a new tab instead of using the active one")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout for non-interactive commands")

	listCmd.Flags().String("query", "", "Only show rows matching this search")
	exportCmd.Flags().String("query", "", "Export rows matching this search (ignored when a selection exists)")
	exportCmd.Flags().String("out", "", "Output directory (default: export.dir)")
	exportCmd.Flags().Bool("date-stamp", false, "Add -YYYY-MM-DD to the file name")
	scanCmd.Flags().String("html", "", "Saved variables page to scrape (required)")
	scanCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	scanCmd.Flags().Bool("watch", false, "Rescan whenever the file changes")
	_ = scanCmd.MarkFlagRequired("html")
	selectCmd.Flags().Bool("off", false, "Clear the selection instead of setting it")
	deleteCmd.Flags().Bool("yes", false, "Delete without printing a dry run first")

	rootCmd.AddCommand(popupCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
