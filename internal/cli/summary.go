package cli

import (
	"fmt"
	"io"
	"strconv"

	"cocoa-dashboard/internal/models"
	"cocoa-dashboard/internal/services"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type summaryOptions struct {
	year int
	top  int
}

func newSummaryCommand(root *rootOptions) *cobra.Command {
	opts := &summaryOptions{}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print world-share KPIs and top importers for a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			analytics, err := loadAnalytics(cmd.Context(), cfg, offlineLogger(cmd, cfg))
			if err != nil {
				return err
			}
			year, err := resolveYear(analytics, opts.year, cfg.Dashboard.DefaultYear)
			if err != nil {
				return err
			}
			return renderSummary(cmd.OutOrStdout(), analytics, year, opts.top)
		},
	}

	cmd.Flags().IntVarP(&opts.year, "year", "y", 0, "Year to summarise (default: configured default, then latest)")
	cmd.Flags().IntVarP(&opts.top, "top", "n", 3, "Importers to list per geography")

	return cmd
}

func renderSummary(w io.Writer, analytics *services.Analytics, year, top int) error {
	kpis, err := analytics.KPIs(year)
	if err != nil {
		return err
	}

	yoy := make(map[models.Geography]*float64, len(kpis))
	for _, agg := range analytics.AllAggregates() {
		if agg.Year == year {
			yoy[agg.Geo] = agg.YoYPercentChange
		}
	}

	pterm.DefaultSection.WithWriter(w).Printfln("Cocoa bean imports in %d", year)

	kpiData := pterm.TableData{{"Geography", "Tonnes", "World share", "YoY", "Top importer"}}
	for _, k := range kpis {
		kpiData = append(kpiData, []string{
			k.Geo.String(),
			strconv.FormatFloat(k.TotalTonnes, 'f', 0, 64),
			fmt.Sprintf("%.2f%%", k.WorldSharePercent),
			formatYoY(yoy[k.Geo]),
			orDash(k.TopImporter),
		})
	}
	if err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithWriter(w).
		WithData(kpiData).
		Render(); err != nil {
		return err
	}

	if top <= 0 {
		return nil
	}

	importerData := pterm.TableData{{"Geography", "Rank", "Importer", "Tonnes", "Share of geography"}}
	for _, geo := range models.AllGeographies() {
		ranked := analytics.Importers(geo, year)
		for i, imp := range ranked[:min(top, len(ranked))] {
			importerData = append(importerData, []string{
				geo.String(),
				strconv.Itoa(i + 1),
				imp.Importer,
				strconv.FormatFloat(imp.Tonnes, 'f', 0, 64),
				fmt.Sprintf("%.2f%%", imp.SharePercent),
			})
		}
	}
	return pterm.DefaultTable.
		WithHasHeader().
		WithWriter(w).
		WithData(importerData).
		Render()
}

func formatYoY(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
