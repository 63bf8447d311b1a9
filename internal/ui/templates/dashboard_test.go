package templates

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cocoa-dashboard/internal/models"
)

func testView() DashboardView {
	return DashboardView{
		Years:   []int{2020, 2021},
		Year:    2021,
		Version: "42",
		Columns: []GeoColumn{
			{
				Geo:      models.GeoEurope,
				KPI:      models.GeoKPI{Geo: models.GeoEurope, Year: 2021, WorldSharePercent: 61.5387, TopImporter: "Netherlands"},
				Options:  []string{"Netherlands", "Germany"},
				Selected: []string{"Netherlands"},
			},
			{
				Geo:      models.GeoAsiaOceania,
				KPI:      models.GeoKPI{Geo: models.GeoAsiaOceania, Year: 2021, WorldSharePercent: 20, TopImporter: "Malaysia"},
				Options:  []string{"Malaysia", "Indonesia"},
				Selected: []string{"Malaysia", "Indonesia"},
			},
			{
				Geo:     models.GeoAmericas,
				KPI:     models.GeoKPI{Geo: models.GeoAmericas, Year: 2021, WorldSharePercent: 18.4613},
				Options: nil,
			},
		},
	}
}

func TestDashboard_Render(t *testing.T) {
	var sb strings.Builder
	if err := Dashboard(testView()).Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := sb.String()

	expected := []string{
		"<!doctype html>",
		"<h1>COCOA BEAN IMPORT</h1>",
		DatastarScript,
		`<option value="2021" selected>2021</option>`,
		`<option value="2020">2020</option>`,
		`id="kpis"`,
		"61.54%",
		`id="yoy-charts"`,
		`id="area-charts"`,
		`id="treemaps"`,
		`id="importer-bars"`,
		`id="top-importers"`,
		"Select European Country:",
		`data-bind="asiaOceania"`,
		`<option value="Indonesia" selected>Indonesia</option>`,
		`<option value="Germany">Germany</option>`,
		`href="/export/xlsx?year=2021"`,
		"Version 42",
	}
	for _, want := range expected {
		if !strings.Contains(html, want) {
			t.Errorf("expected HTML to contain %q", want)
		}
	}
}

func TestDashboard_EscapesImporterNames(t *testing.T) {
	v := testView()
	v.Columns[0].Options = []string{`<script>alert("x")</script>`}

	var sb strings.Builder
	if err := Dashboard(v).Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(sb.String(), `<script>alert`) {
		t.Error("importer names must be HTML escaped")
	}
}

func TestDashboard_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sb strings.Builder
	if err := Dashboard(testView()).Render(ctx, &sb); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestFragments_RenderStandalone(t *testing.T) {
	v := testView()

	var sb strings.Builder
	if err := KPIBlock(v).Render(context.Background(), &sb); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sb.String(), `<section id="kpis">`) {
		t.Errorf("KPIBlock should be rooted at #kpis, got %.40s", sb.String())
	}

	sb.Reset()
	if err := TopImportersText(v).Render(context.Background(), &sb); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "Netherlands, Malaysia and none respectively") {
		t.Errorf("unexpected top importers text: %s", sb.String())
	}

	sb.Reset()
	if err := ChartRow("treemaps", v.TreemapCells()).Render(context.Background(), &sb); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(sb.String(), "<img "); got != 3 {
		t.Errorf("ChartRow rendered %d images, want 3", got)
	}

	sb.Reset()
	if err := CountrySelects(v).Render(context.Background(), &sb); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(sb.String(), "<select "); got != 3 {
		t.Errorf("CountrySelects rendered %d selects, want 3", got)
	}
}

func TestDashboardView_Signals(t *testing.T) {
	var got map[string]any
	if err := json.Unmarshal([]byte(testView().SignalsJSON()), &got); err != nil {
		t.Fatalf("SignalsJSON() is not valid JSON: %v", err)
	}

	want := map[string]any{
		"year":        float64(2021),
		"europe":      []any{"Netherlands"},
		"asiaOceania": []any{"Malaysia", "Indonesia"},
		"americas":    []any{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SignalsJSON() mismatch (-want +got):\n%s", diff)
	}
}

func TestChartURL(t *testing.T) {
	tests := []struct {
		name      string
		kind      string
		geo       models.Geography
		year      int
		importers []string
		wantQuery url.Values
	}{
		{"yoy", ChartYoY, models.GeoEurope, 0, nil, url.Values{"geo": {"europe"}, "v": {"7"}}},
		{"treemap", ChartTreemap, models.GeoAsiaOceania, 2021, nil, url.Values{"geo": {"asia-oceania"}, "year": {"2021"}, "v": {"7"}}},
		{"importers", ChartImporters, models.GeoAmericas, 0, []string{"United States", "Canada"},
			url.Values{"geo": {"americas"}, "importer": {"United States", "Canada"}, "v": {"7"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(ChartURL(tt.kind, tt.geo, tt.year, tt.importers, "7"))
			if err != nil {
				t.Fatal(err)
			}
			if u.Path != "/charts/"+tt.kind {
				t.Errorf("path = %q", u.Path)
			}
			if diff := cmp.Diff(tt.wantQuery, u.Query()); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNarratives(t *testing.T) {
	v := testView()
	if got := v.LeadNarrative(); !strings.Contains(got, "61.54 % of total global import in 2021") {
		t.Errorf("LeadNarrative() = %q", got)
	}

	empty := DashboardView{Year: 2019}
	if got := empty.LeadNarrative(); !strings.Contains(got, "n/a") {
		t.Errorf("LeadNarrative() without data = %q", got)
	}
	if got := empty.TopImportersNarrative(); !strings.Contains(got, "none, none and none") {
		t.Errorf("TopImportersNarrative() without data = %q", got)
	}
}
