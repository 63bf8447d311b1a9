package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"cocoa-dashboard/internal/models"
	"cocoa-dashboard/internal/services"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newTestTools() *Tools {
	a := services.NewAnalytics(services.WithoutCache(),
		services.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	a.SetData([]models.ImportRecord{
		{Geo: models.GeoEurope, Year: 2020, Importer: "France", Tonnes: 100},
		{Geo: models.GeoEurope, Year: 2021, Importer: "France", Tonnes: 150},
		{Geo: models.GeoEurope, Year: 2021, Importer: "Germany", Tonnes: 150},
		{Geo: models.GeoAmericas, Year: 2021, Importer: "United States", Tonnes: 100},
	})
	return New(a)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %+v", result)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestRegister(t *testing.T) {
	s := server.NewMCPServer("cocoa-dashboard", "test")
	Register(s, services.NewAnalytics(services.WithoutCache()))
}

func TestListYears(t *testing.T) {
	tools := newTestTools()

	result, err := tools.listYears(context.Background(), callRequest("list_years", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got struct {
		Years  []int `json:"years"`
		Latest int   `json:"latest"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if diff := cmp.Diff([]int{2020, 2021}, got.Years); diff != "" {
		t.Errorf("years mismatch (-want +got):\n%s", diff)
	}
	if got.Latest != 2021 {
		t.Errorf("latest = %d, want 2021", got.Latest)
	}
}

func TestListYears_Empty(t *testing.T) {
	tools := New(services.NewAnalytics(services.WithoutCache()))

	result, _ := tools.listYears(context.Background(), callRequest("list_years", nil))
	if !result.IsError {
		t.Error("expected error result for an empty dataset")
	}
}

func TestGeoYearAggregates(t *testing.T) {
	tools := newTestTools()

	result, err := tools.geoYearAggregates(context.Background(),
		callRequest("geo_year_aggregates", map[string]any{"geo": "europe"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	var aggs []models.GeoYearAggregate
	if err := json.Unmarshal([]byte(resultText(t, result)), &aggs); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggs))
	}
	if aggs[0].YoYPercentChange != nil {
		t.Errorf("first year YoY = %v, want nil", *aggs[0].YoYPercentChange)
	}
	if aggs[1].YoYPercentChange == nil || *aggs[1].YoYPercentChange != 200 {
		t.Errorf("2021 YoY = %v, want 200", aggs[1].YoYPercentChange)
	}
}

func TestWorldShareKPIs(t *testing.T) {
	tools := newTestTools()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		wantYear  int
	}{
		{"defaults to latest", nil, false, 2021},
		{"numeric year", map[string]any{"year": float64(2020)}, false, 2020},
		{"string year", map[string]any{"year": "2020"}, false, 2020},
		{"unknown year", map[string]any{"year": float64(1999)}, true, 0},
		{"fractional year", map[string]any{"year": 2020.5}, true, 0},
		{"garbage year", map[string]any{"year": "soon"}, true, 0},
		{"wrong type", map[string]any{"year": true}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tools.worldShareKPIs(context.Background(), callRequest("world_share_kpis", tt.args))
			if err != nil {
				t.Fatalf("unexpected protocol error: %v", err)
			}
			if result.IsError != tt.wantError {
				t.Fatalf("IsError = %v, want %v (%s)", result.IsError, tt.wantError, resultText(t, result))
			}
			if tt.wantError {
				return
			}

			var kpis []models.GeoKPI
			if err := json.Unmarshal([]byte(resultText(t, result)), &kpis); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if len(kpis) != 3 {
				t.Fatalf("expected 3 KPIs, got %d", len(kpis))
			}
			var total float64
			for _, k := range kpis {
				if k.Year != tt.wantYear {
					t.Errorf("KPI year = %d, want %d", k.Year, tt.wantYear)
				}
				total += k.WorldSharePercent
			}
			if total < 99.999 || total > 100.001 {
				t.Errorf("world shares sum to %v, want 100", total)
			}
		})
	}
}

func TestTopImporter(t *testing.T) {
	tools := newTestTools()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		want      string
	}{
		{"tie goes to first row", map[string]any{"geo": "Europe", "year": float64(2021)}, false, "France"},
		{"slug", map[string]any{"geo": "americas"}, false, "United States"},
		{"no importers that year", map[string]any{"geo": "asia-oceania", "year": float64(2021)}, true, ""},
		{"missing geo", map[string]any{"year": float64(2021)}, true, ""},
		{"unknown geo", map[string]any{"geo": "Atlantis"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tools.topImporter(context.Background(), callRequest("top_importer", tt.args))
			if err != nil {
				t.Fatalf("unexpected protocol error: %v", err)
			}
			if result.IsError != tt.wantError {
				t.Fatalf("IsError = %v, want %v (%s)", result.IsError, tt.wantError, resultText(t, result))
			}
			if tt.wantError {
				return
			}
			var got struct {
				Importer string `json:"importer"`
			}
			if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if got.Importer != tt.want {
				t.Errorf("importer = %q, want %q", got.Importer, tt.want)
			}
		})
	}
}

func TestImporterSeries(t *testing.T) {
	tools := newTestTools()

	result, err := tools.importerSeries(context.Background(), callRequest("importer_series",
		map[string]any{"geo": "europe", "importers": " France , ,Germany"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []models.ImporterYearPoint
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	want := []models.ImporterYearPoint{
		{Importer: "France", Year: 2020, Tonnes: 100},
		{Importer: "France", Year: 2021, Tonnes: 150},
		{Importer: "Germany", Year: 2021, Tonnes: 150},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}

	result, _ = tools.importerSeries(context.Background(), callRequest("importer_series",
		map[string]any{"geo": "europe", "importers": " , "}))
	if !result.IsError || !strings.Contains(resultText(t, result), "importers") {
		t.Error("expected an error result for an empty importer list")
	}
}
