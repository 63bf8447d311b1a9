// Package tools exposes the cocoa import analytics as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cocoa-dashboard/internal/models"
	"cocoa-dashboard/internal/services"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Tools struct {
	analytics *services.Analytics
}

func New(analytics *services.Analytics) *Tools {
	return &Tools{analytics: analytics}
}

// Register registers all tools with the MCP server.
func Register(s *server.MCPServer, analytics *services.Analytics) {
	t := New(analytics)

	s.AddTool(mcp.NewTool("list_years",
		mcp.WithDescription("Lists the years present in the cocoa bean import dataset, oldest first."),
	), t.listYears)

	s.AddTool(mcp.NewTool("geo_year_aggregates",
		mcp.WithDescription("Returns total tonnes, year-over-year change and world share per year for one geography. The first year of a geography has a null YoY change."),
		mcp.WithString("geo",
			mcp.Required(),
			mcp.Description("Geography: Europe, Asia & Oceania or Americas (slugs such as asia-oceania are accepted)"),
		),
	), t.geoYearAggregates)

	s.AddTool(mcp.NewTool("world_share_kpis",
		mcp.WithDescription("Returns total tonnes, world share percentage and top importer for every geography in a year."),
		mcp.WithNumber("year",
			mcp.Description("Year to report. Defaults to the latest year in the dataset"),
		),
	), t.worldShareKPIs)

	s.AddTool(mcp.NewTool("top_importer",
		mcp.WithDescription("Returns the importer with the most tonnes for a geography and year. Ties go to the importer listed first in the source data."),
		mcp.WithString("geo",
			mcp.Required(),
			mcp.Description("Geography: Europe, Asia & Oceania or Americas"),
		),
		mcp.WithNumber("year",
			mcp.Description("Year to report. Defaults to the latest year in the dataset"),
		),
	), t.topImporter)

	s.AddTool(mcp.NewTool("importer_series",
		mcp.WithDescription("Returns tonnes per year for the named importers within a geography."),
		mcp.WithString("geo",
			mcp.Required(),
			mcp.Description("Geography: Europe, Asia & Oceania or Americas"),
		),
		mcp.WithString("importers",
			mcp.Required(),
			mcp.Description("Comma-separated importer names, e.g. \"Netherlands,Germany\""),
		),
	), t.importerSeries)
}

func (t *Tools) listYears(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	years := t.analytics.Years()
	if len(years) == 0 {
		return newToolResultError("no data loaded"), nil
	}
	return jsonResult(map[string]any{"years": years, "latest": years[len(years)-1]})
}

func (t *Tools) geoYearAggregates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	geo, errResult := geoArgument(request)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(t.analytics.Aggregates(geo))
}

func (t *Tools) worldShareKPIs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, errResult := t.yearArgument(request)
	if errResult != nil {
		return errResult, nil
	}

	kpis, err := t.analytics.KPIs(year)
	if err != nil {
		return newToolResultError(err.Error()), nil
	}
	return jsonResult(kpis)
}

func (t *Tools) topImporter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	geo, errResult := geoArgument(request)
	if errResult != nil {
		return errResult, nil
	}
	year, errResult := t.yearArgument(request)
	if errResult != nil {
		return errResult, nil
	}

	top, ok := t.analytics.TopImporter(geo, year)
	if !ok {
		return newToolResultError(fmt.Sprintf("no importers for %s in %d", geo, year)), nil
	}
	return jsonResult(map[string]any{
		"geo":      geo,
		"year":     year,
		"importer": top.Importer,
		"tonnes":   top.Tonnes,
	})
}

func (t *Tools) importerSeries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	geo, errResult := geoArgument(request)
	if errResult != nil {
		return errResult, nil
	}

	raw, _ := request.Params.Arguments["importers"].(string)
	var importers []string
	for name := range strings.SplitSeq(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			importers = append(importers, name)
		}
	}
	if len(importers) == 0 {
		return newToolResultError("importers is required"), nil
	}

	return jsonResult(t.analytics.ImporterSeries(geo, importers))
}

func geoArgument(request mcp.CallToolRequest) (models.Geography, *mcp.CallToolResult) {
	raw, ok := request.Params.Arguments["geo"].(string)
	if !ok || raw == "" {
		return "", newToolResultError("geo is required")
	}
	geo, err := models.ParseGeography(raw)
	if err != nil {
		return "", newToolResultError(err.Error())
	}
	return geo, nil
}

// yearArgument accepts a JSON number or a numeric string. Absent means the
// latest year.
func (t *Tools) yearArgument(request mcp.CallToolRequest) (int, *mcp.CallToolResult) {
	var year int
	switch v := request.Params.Arguments["year"].(type) {
	case nil:
		latest, ok := t.analytics.LatestYear()
		if !ok {
			return 0, newToolResultError("no data loaded")
		}
		return latest, nil
	case float64:
		if v != float64(int(v)) {
			return 0, newToolResultError(fmt.Sprintf("year must be a whole number, got %g", v))
		}
		year = int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, newToolResultError(fmt.Sprintf("year must be a number, got %q", v))
		}
		year = n
	default:
		return 0, newToolResultError(fmt.Sprintf("year must be a number, got %T", v))
	}

	if !t.analytics.HasYear(year) {
		return 0, newToolResultError(fmt.Sprintf("no data for year %d", year))
	}
	return year, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func newToolResultError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: message,
			},
		},
		IsError: true,
	}
}
