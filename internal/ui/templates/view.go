package templates

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"cocoa-dashboard/internal/models"
)

const DatastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// Chart kinds served under /charts/{kind}.
const (
	ChartYoY       = "yoy"
	ChartArea      = "area"
	ChartTreemap   = "treemap"
	ChartImporters = "importers"
)

var ExportFormats = []string{"xlsx", "pdf", "csv", "json"}

var signalNames = map[models.Geography]string{
	models.GeoEurope:      "europe",
	models.GeoAsiaOceania: "asiaOceania",
	models.GeoAmericas:    "americas",
}

var selectLabels = map[models.Geography]string{
	models.GeoEurope:      "Select European Country:",
	models.GeoAsiaOceania: "Select Asian/Oceanian Country:",
	models.GeoAmericas:    "Select American Country:",
}

// SignalFor is the datastar signal holding the selected importers of geo.
func SignalFor(geo models.Geography) string {
	return signalNames[geo]
}

type GeoColumn struct {
	Geo      models.Geography
	KPI      models.GeoKPI
	Options  []string
	Selected []string
}

func (c GeoColumn) Signal() string      { return SignalFor(c.Geo) }
func (c GeoColumn) SelectLabel() string { return selectLabels[c.Geo] }
func (c GeoColumn) SelectID() string    { return "select-" + c.Geo.Slug() }

func (c GeoColumn) IsSelected(importer string) bool {
	return slices.Contains(c.Selected, importer)
}

func (c GeoColumn) Share() string {
	return FormatShare(c.KPI.WorldSharePercent)
}

type ChartCell struct {
	Title string
	Src   string
}

// DashboardView is everything the page and its SSE fragments render from.
// Version changes whenever the dataset is reloaded so chart URLs bust
// browser caches.
type DashboardView struct {
	Years   []int
	Year    int
	Version string
	Columns []GeoColumn
}

func (v DashboardView) Column(geo models.Geography) (GeoColumn, bool) {
	for _, c := range v.Columns {
		if c.Geo == geo {
			return c, true
		}
	}
	return GeoColumn{}, false
}

// Signals is the initial datastar signal object for the page.
func (v DashboardView) Signals() map[string]any {
	signals := map[string]any{"year": v.Year}
	for _, c := range v.Columns {
		selected := c.Selected
		if selected == nil {
			selected = []string{}
		}
		signals[c.Signal()] = selected
	}
	return signals
}

func (v DashboardView) SignalsJSON() string {
	b, err := json.Marshal(v.Signals())
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (v DashboardView) LeadNarrative() string {
	share := "n/a"
	if c, ok := v.Column(models.GeoEurope); ok {
		share = c.Share()
	}
	return fmt.Sprintf("Europe is the world's largest importer of cocoa beans. It accounts for %s %% of total global import in %d, making it the world's largest cocoa bean importer.", share, v.Year)
}

// TopImportersNarrative names the largest importer per geography for the
// selected year.
func (v DashboardView) TopImportersNarrative() string {
	names := make([]string, 0, len(v.Columns))
	for _, c := range v.Columns {
		name := c.KPI.TopImporter
		if name == "" {
			name = "none"
		}
		names = append(names, name)
	}
	for len(names) < 3 {
		names = append(names, "none")
	}
	return fmt.Sprintf("What countries import the most cocoa beans? At country level, in %d the largest importers for Europe, Asia & Oceania and Americas are %s, %s and %s respectively.",
		v.Year, names[0], names[1], names[2])
}

func (v DashboardView) YoYCells() []ChartCell {
	return v.cells(ChartYoY, func(c GeoColumn) string {
		return ChartURL(ChartYoY, c.Geo, 0, nil, v.Version)
	})
}

func (v DashboardView) AreaCells() []ChartCell {
	return v.cells(ChartArea, func(c GeoColumn) string {
		return ChartURL(ChartArea, c.Geo, 0, nil, v.Version)
	})
}

func (v DashboardView) TreemapCells() []ChartCell {
	return v.cells(ChartTreemap, func(c GeoColumn) string {
		return ChartURL(ChartTreemap, c.Geo, v.Year, nil, v.Version)
	})
}

func (v DashboardView) ImporterBarCells() []ChartCell {
	return v.cells(ChartImporters, func(c GeoColumn) string {
		return ChartURL(ChartImporters, c.Geo, 0, c.Selected, v.Version)
	})
}

func (v DashboardView) cells(kind string, src func(GeoColumn) string) []ChartCell {
	cells := make([]ChartCell, 0, len(v.Columns))
	for _, c := range v.Columns {
		cells = append(cells, ChartCell{Title: c.Geo.String() + " " + kind, Src: src(c)})
	}
	return cells
}

// ChartURL builds the /charts/{kind} URL. Zero year and empty importers are
// omitted.
func ChartURL(kind string, geo models.Geography, year int, importers []string, version string) string {
	q := url.Values{}
	q.Set("geo", geo.Slug())
	if year != 0 {
		q.Set("year", strconv.Itoa(year))
	}
	for _, imp := range importers {
		q.Add("importer", imp)
	}
	if version != "" {
		q.Set("v", version)
	}
	return "/charts/" + kind + "?" + q.Encode()
}

func ExportURL(format string, year int) string {
	return fmt.Sprintf("/export/%s?year=%d", format, year)
}

// ExportHrefExpr keeps export links pointing at the selected year.
func ExportHrefExpr(format string) string {
	return fmt.Sprintf("'/export/%s?year=' + $year", format)
}

func FormatShare(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
