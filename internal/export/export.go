// Package export writes dashboard reports as spreadsheet, PDF, CSV, JSON or
// SQLite files.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cocoa-dashboard/internal/models"
)

type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatPDF    Format = "pdf"
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

var formats = []Format{FormatXLSX, FormatPDF, FormatCSV, FormatJSON, FormatSQLite}

// FormatFromString parses a format name, case-insensitively.
func FormatFromString(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format %q (want xlsx, pdf, csv, json or sqlite)", s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatSQLite:
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}

// Streamable reports whether the format can be written to an io.Writer.
// SQLite needs a file on disk.
func (f Format) Streamable() bool {
	return f != FormatSQLite
}

// Filename is the suggested download name for a report of year.
func (f Format) Filename(year int) string {
	return fmt.Sprintf("cocoa_imports_%d.%s", year, f)
}

type GeoImporters struct {
	Geo       models.Geography        `json:"geo"`
	Importers []models.ImporterTonnes `json:"importers"`
}

// Report is the exported snapshot for one selected year.
type Report struct {
	Year        int                       `json:"year"`
	GeneratedAt time.Time                 `json:"generated_at"`
	KPIs        []models.GeoKPI           `json:"kpis"`
	Aggregates  []models.GeoYearAggregate `json:"aggregates"`
	Importers   []GeoImporters            `json:"importers"`
	Records     []models.ImportRecord     `json:"-"`
}

// Source is the read side of the analytics service used to build reports.
type Source interface {
	KPIs(year int) ([]models.GeoKPI, error)
	AllAggregates() []models.GeoYearAggregate
	Importers(geo models.Geography, year int) []models.ImporterTonnes
	Records() []models.ImportRecord
}

func BuildReport(src Source, year int) (*Report, error) {
	kpis, err := src.KPIs(year)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}

	report := &Report{
		Year:        year,
		GeneratedAt: time.Now().UTC(),
		KPIs:        kpis,
		Aggregates:  src.AllAggregates(),
		Records:     src.Records(),
	}
	for _, geo := range models.AllGeographies() {
		report.Importers = append(report.Importers, GeoImporters{
			Geo:       geo,
			Importers: src.Importers(geo, year),
		})
	}
	return report, nil
}

// Write streams r to w in format f.
func Write(w io.Writer, f Format, r *Report) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, r)
	case FormatPDF:
		return WritePDF(w, r)
	case FormatCSV:
		return WriteCSV(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatSQLite:
		return fmt.Errorf("%s export needs a file path", f)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteFile writes r to path, creating parent directories.
func WriteFile(ctx context.Context, path string, f Format, r *Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	if !f.Streamable() {
		return WriteSQLite(ctx, path, r)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s file: %w", f, err)
	}
	if err := Write(file, f, r); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func WriteJSON(w io.Writer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("error encoding JSON data: %w", err)
	}
	return nil
}

func formatYoY(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
