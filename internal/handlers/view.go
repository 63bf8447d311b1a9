package handlers

import (
	"slices"
	"strconv"

	"cocoa-dashboard/internal/models"
	"cocoa-dashboard/internal/services"
	"cocoa-dashboard/internal/ui/templates"
)

type selections map[models.Geography][]string

// viewBuilder derives the dashboard view for a year and importer selection.
type viewBuilder struct {
	analytics   *services.Analytics
	defaultYear int
}

// resolveYear picks the requested year when loaded, then the configured
// default, then the latest year.
func (b viewBuilder) resolveYear(requested int) int {
	if b.analytics.HasYear(requested) {
		return requested
	}
	if b.analytics.HasYear(b.defaultYear) {
		return b.defaultYear
	}
	latest, _ := b.analytics.LatestYear()
	return latest
}

func (b viewBuilder) build(requested int, sel selections) templates.DashboardView {
	year := b.resolveYear(requested)
	view := templates.DashboardView{
		Years:   b.analytics.Years(),
		Year:    year,
		Version: datasetVersion(b.analytics),
	}

	kpis, _ := b.analytics.KPIs(year)
	for _, geo := range models.AllGeographies() {
		col := templates.GeoColumn{Geo: geo, KPI: models.GeoKPI{Geo: geo, Year: year}}
		for _, k := range kpis {
			if k.Geo == geo {
				col.KPI = k
			}
		}

		ranked := b.analytics.Importers(geo, year)
		col.Options = make([]string, 0, len(ranked))
		for _, it := range ranked {
			col.Options = append(col.Options, it.Importer)
		}
		col.Selected = resolveSelection(col.Options, sel[geo], col.KPI.TopImporter)
		view.Columns = append(view.Columns, col)
	}
	return view
}

// resolveSelection keeps the requested importers available this year, in
// request order. An empty result falls back to the top importer.
func resolveSelection(options, requested []string, top string) []string {
	selected := make([]string, 0, len(requested))
	for _, imp := range requested {
		if slices.Contains(options, imp) && !slices.Contains(selected, imp) {
			selected = append(selected, imp)
		}
	}
	if len(selected) == 0 && top != "" {
		selected = append(selected, top)
	}
	return selected
}

// datasetVersion changes on every load so chart URLs are not served stale.
func datasetVersion(analytics *services.Analytics) string {
	return strconv.FormatInt(analytics.Stats().LoadedAt.UnixNano(), 36)
}
