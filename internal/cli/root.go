// Package cli wires the cocoa-dashboard commands: the web server, file
// exports, a terminal summary and the MCP tool server.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cocoa-dashboard/internal/config"
	"cocoa-dashboard/internal/observability"
	"cocoa-dashboard/internal/services"
	"cocoa-dashboard/pkg/version"

	"github.com/spf13/cobra"
)

const csvLoadTimeout = 30 * time.Second

type rootOptions struct {
	configFile string
	csvFile    string
	noCache    bool
}

// NewRootCommand builds the command tree. Running the root without a
// subcommand starts the server.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "cocoa-dashboard",
		Short:         "Cocoa bean import dashboard",
		Version:       version.FormatVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "Cocoa Dashboard version: %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "C", "", "Path to a TOML, YAML, or JSON configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.csvFile, "csv", "", "CSV file with Geo, Year, Importers and Tonnes columns (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&opts.noCache, "no-cache", false, "Skip the precomputed data cache")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newExportCommand(opts),
		newSummaryCommand(opts),
		newMCPCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

func Execute() error {
	return NewRootCommand().Execute()
}

// load resolves configuration in order: defaults, config file, environment,
// then command-line flags.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.csvFile != "" {
		cfg.Data.CSVFile = o.csvFile
	}
	if o.noCache {
		cfg.Data.CacheEnabled = false
	}
	return cfg, nil
}

func loadAnalytics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services.Analytics, error) {
	opts := []services.Option{services.WithLogger(logger)}
	if cfg.Data.CacheEnabled {
		opts = append(opts, services.WithCacheDir(cfg.Data.CacheDir))
	} else {
		opts = append(opts, services.WithoutCache())
	}
	analytics := services.NewAnalytics(opts...)

	ctx, cancel := context.WithTimeout(ctx, csvLoadTimeout)
	defer cancel()

	start := time.Now()
	if err := analytics.LoadFromCSV(ctx, cfg.Data.CSVFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.Data.CSVFile, err)
	}
	logger.Info("CSV data loaded successfully", "duration", time.Since(start))

	return analytics, nil
}

// offlineLogger sends logs to stderr so command output stays clean.
func offlineLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logger)
}

// resolveYear applies the fallback chain: explicit year, configured default,
// latest year in the data.
func resolveYear(analytics *services.Analytics, requested, configured int) (int, error) {
	if requested == 0 {
		requested = configured
	}
	if requested == 0 {
		latest, ok := analytics.LatestYear()
		if !ok {
			return 0, services.ErrNoData
		}
		return latest, nil
	}
	if !analytics.HasYear(requested) {
		return 0, fmt.Errorf("%w: %d", services.ErrUnknownYear, requested)
	}
	return requested, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cocoa-dashboard %s\n", version.FormatVersion())
		},
	}
}
