package cli

import (
	"fmt"

	"cocoa-dashboard/internal/export"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type exportOptions struct {
	format string
	year   int
	out    string
}

func newExportCommand(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a report for one year to a file",
		Long: `Writes aggregates, world-share KPIs and ranked importers for one year.

Formats: xlsx, pdf, csv, json and sqlite. The sqlite snapshot also carries
the raw import records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "xlsx", "Report format: xlsx, pdf, csv, json, sqlite")
	cmd.Flags().IntVarP(&opts.year, "year", "y", 0, "Report year (default: configured default, then latest)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output path (default: cocoa_imports_<year>.<ext>)")

	return cmd
}

func runExport(cmd *cobra.Command, root *rootOptions, opts *exportOptions) error {
	format, err := export.FormatFromString(opts.format)
	if err != nil {
		return err
	}

	cfg, err := root.load()
	if err != nil {
		return err
	}
	logger := offlineLogger(cmd, cfg)

	analytics, err := loadAnalytics(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	year, err := resolveYear(analytics, opts.year, cfg.Dashboard.DefaultYear)
	if err != nil {
		return err
	}

	report, err := export.BuildReport(analytics, year)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	out := opts.out
	if out == "" {
		out = format.Filename(year)
	}
	if err := export.WriteFile(cmd.Context(), out, format, report); err != nil {
		return err
	}

	logger.Info("report exported", "format", format, "year", year, "path", out)
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Wrote %s report for %d to %s", format, year, out)
	return nil
}
