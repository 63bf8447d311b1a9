package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	sheetKPIs       = "KPIs"
	sheetAggregates = "Aggregates"
	sheetImporters  = "Importers"
)

var aggregateHeaders = []string{"Geo", "Year", "Total Tonnes", "YoY %", "World Share %"}

// WriteCSV writes the geography-year aggregate table.
func WriteCSV(w io.Writer, r *Report) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(aggregateHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, agg := range r.Aggregates {
		record := []string{
			agg.Geo.String(),
			strconv.Itoa(agg.Year),
			strconv.FormatFloat(agg.TotalTonnes, 'f', -1, 64),
			formatYoY(agg.YoYPercentChange),
			fmt.Sprintf("%.2f", agg.WorldSharePercent),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes one sheet per table: KPIs for the report year, all
// aggregates, and ranked importers.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetKPIs); err != nil {
		return err
	}
	for _, name := range []string{sheetAggregates, sheetImporters} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2D7DB6"}},
	})
	if err != nil {
		return err
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]any
	}{
		{sheetKPIs, []string{"Geo", "Year", "Total Tonnes", "World Share %", "Top Importer"}, kpiRows(r)},
		{sheetAggregates, aggregateHeaders, aggregateRows(r)},
		{sheetImporters, []string{"Geo", "Year", "Importer", "Tonnes", "Share %"}, importerRows(r)},
	}

	for _, sh := range sheets {
		for i, h := range sh.headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(sh.name, cell, h); err != nil {
				return err
			}
		}
		last, _ := excelize.CoordinatesToCellName(len(sh.headers), 1)
		if err := f.SetCellStyle(sh.name, "A1", last, header); err != nil {
			return err
		}
		lastCol, _, _ := excelize.SplitCellName(last)
		if err := f.SetColWidth(sh.name, "A", lastCol, 18); err != nil {
			return err
		}

		for i, row := range sh.rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func kpiRows(r *Report) [][]any {
	rows := make([][]any, 0, len(r.KPIs))
	for _, k := range r.KPIs {
		rows = append(rows, []any{k.Geo.String(), k.Year, k.TotalTonnes, round2(k.WorldSharePercent), k.TopImporter})
	}
	return rows
}

func aggregateRows(r *Report) [][]any {
	rows := make([][]any, 0, len(r.Aggregates))
	for _, agg := range r.Aggregates {
		var yoy any
		if agg.YoYPercentChange != nil {
			yoy = round2(*agg.YoYPercentChange)
		}
		rows = append(rows, []any{agg.Geo.String(), agg.Year, agg.TotalTonnes, yoy, round2(agg.WorldSharePercent)})
	}
	return rows
}

func importerRows(r *Report) [][]any {
	var rows [][]any
	for _, g := range r.Importers {
		for _, it := range g.Importers {
			rows = append(rows, []any{g.Geo.String(), r.Year, it.Importer, it.Tonnes, round2(it.SharePercent)})
		}
	}
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var (
	headerFill = [3]int{45, 125, 182}
	textColor  = [3]int{40, 40, 40}
)

// WritePDF renders a one-page summary: KPI narrative for the report year and
// the aggregate table.
func WritePDF(w io.Writer, r *Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Cocoa bean imports %d", r.Year), true)
	pdf.AddPage()

	pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 12, tr(fmt.Sprintf("  COCOA BEAN IMPORT - %d", r.Year)), "", 1, "L", true, 0, "")
	pdf.Ln(6)

	pdf.SetTextColor(textColor[0], textColor[1], textColor[2])
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "World share")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, k := range r.KPIs {
		line := fmt.Sprintf("%s imported %.2f%% of world cocoa beans in %d.", k.Geo, k.WorldSharePercent, k.Year)
		if k.TopImporter != "" {
			line += fmt.Sprintf(" Largest importer: %s.", k.TopImporter)
		}
		pdf.MultiCell(190, 5, tr(line), "", "L", false)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Imports by geography and year")
	pdf.Ln(9)

	widths := []float64{50, 25, 40, 35, 40}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	for i, h := range aggregateHeaders {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, agg := range r.Aggregates {
		yoy := formatYoY(agg.YoYPercentChange)
		if yoy == "" {
			yoy = "-"
		}
		cells := []string{
			agg.Geo.String(),
			strconv.Itoa(agg.Year),
			fmt.Sprintf("%.0f", agg.TotalTonnes),
			yoy,
			fmt.Sprintf("%.2f", agg.WorldSharePercent),
		}
		for i, c := range cells {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, tr(c), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 10, fmt.Sprintf("Generated %s", r.GeneratedAt.Format("2006-01-02 15:04 MST")), "", 0, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
