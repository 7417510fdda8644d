package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"site-cloner/internal/config"
)

var (
	configFile string

	// Build information, set with -ldflags.
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sitecloner",
	Short: "Clone and rewrite WordPress multisite tenants",
	Long: "sitecloner creates new multisite tenants as copies of existing ones and rewrites " +
		"table prefixes and URLs inside the copied data, including PHP-serialized values.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logger, err = config.NewLogger(cfg.Logging); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sitecloner %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default ./configs/config.yaml or ./config.yaml)")
	rootCmd.AddCommand(versionCmd, serveCmd, cloneCmd, rewriteCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
