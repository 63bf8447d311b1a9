// Package charts renders the dashboard figures as SVG with gonum/plot.
package charts

import (
	"cmp"
	"fmt"
	"image/color"
	"io"
	"math"
	"slices"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgsvg"

	"cocoa-dashboard/internal/models"
)

var (
	// #2D7DB6
	colorPrimary = color.RGBA{R: 0x2D, G: 0x7D, B: 0xB6, A: 0xFF}
	// #BDA5AC
	colorDecline = color.RGBA{R: 0xBD, G: 0xA5, B: 0xAC, A: 0xFF}
	colorFill    = color.RGBA{R: 0x2D, G: 0x7D, B: 0xB6, A: 0x66}

	// Treemap and stacked bar palette: #2D7DB6 #009EC9 #00BDC3 #26D7A8 #9BEC86 #F9F871.
	palette = []color.RGBA{
		{R: 0x2D, G: 0x7D, B: 0xB6, A: 0xFF},
		{R: 0x00, G: 0x9E, B: 0xC9, A: 0xFF},
		{R: 0x00, G: 0xBD, B: 0xC3, A: 0xFF},
		{R: 0x26, G: 0xD7, B: 0xA8, A: 0xFF},
		{R: 0x9B, G: 0xEC, B: 0x86, A: 0xFF},
		{R: 0xF9, G: 0xF8, B: 0x71, A: 0xFF},
	}
)

const noDataCaption = "No data"

type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length

	// YMin and YMax bound the YoY axis. The range widens when data falls
	// outside it.
	YMin float64
	YMax float64
}

func DefaultOptions() Options {
	return Options{
		Width:  4 * vg.Inch,
		Height: 3 * vg.Inch,
		YMin:   -20,
		YMax:   30,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.YMin >= o.YMax {
		o.YMin, o.YMax = d.YMin, d.YMax
	}
	return o
}

// PaletteColor returns the i-th palette entry, cycling.
func PaletteColor(i int) color.RGBA {
	return palette[((i%len(palette))+len(palette))%len(palette)]
}

// YoYBar draws one bar per year of YoY percent change. Growth is blue,
// decline or no change is muted; years without a YoY value get no bar.
func YoYBar(w io.Writer, aggs []models.GeoYearAggregate, opts Options) error {
	opts = opts.withDefaults()
	if len(aggs) == 0 {
		return noData(w, opts)
	}

	sorted := slices.Clone(aggs)
	slices.SortFunc(sorted, func(a, b models.GeoYearAggregate) int { return cmp.Compare(a.Year, b.Year) })

	up := make(plotter.Values, len(sorted))
	down := make(plotter.Values, len(sorted))
	labels := make([]string, len(sorted))
	var (
		marks  plotter.XYs
		texts  []string
		lo, hi = opts.YMin, opts.YMax
	)

	for i, agg := range sorted {
		labels[i] = strconv.Itoa(agg.Year)
		if agg.YoYPercentChange == nil {
			continue
		}
		v := *agg.YoYPercentChange
		if v > 0 {
			up[i] = v
		} else {
			down[i] = v
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		marks = append(marks, plotter.XY{X: float64(i), Y: v})
		texts = append(texts, fmt.Sprintf("%.1f%%", v))
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.Y.Label.Text = "YoY %"

	width := barWidth(opts.Width, len(sorted))
	for _, series := range []struct {
		values plotter.Values
		color  color.Color
	}{
		{up, colorPrimary},
		{down, colorDecline},
	} {
		bars, err := plotter.NewBarChart(series.values, width)
		if err != nil {
			return fmt.Errorf("yoy bars: %w", err)
		}
		bars.Color = series.color
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
	}

	if len(marks) > 0 {
		lbls, err := plotter.NewLabels(plotter.XYLabels{XYs: marks, Labels: texts})
		if err != nil {
			return fmt.Errorf("yoy labels: %w", err)
		}
		for i := range lbls.TextStyle {
			lbls.TextStyle[i].XAlign = draw.XCenter
			if marks[i].Y < 0 {
				lbls.TextStyle[i].YAlign = draw.YTop
			}
		}
		p.Add(lbls)
	}

	p.Add(plotter.NewGrid())
	p.NominalX(labels...)
	p.Y.Min = lo
	p.Y.Max = hi

	return render(w, p, opts)
}

// TonnesArea draws total tonnes by year as a filled area with markers.
func TonnesArea(w io.Writer, aggs []models.GeoYearAggregate, opts Options) error {
	opts = opts.withDefaults()
	if len(aggs) == 0 {
		return noData(w, opts)
	}

	pts := make(plotter.XYs, 0, len(aggs))
	for _, agg := range aggs {
		pts = append(pts, plotter.XY{X: float64(agg.Year), Y: agg.TotalTonnes})
	}
	slices.SortFunc(pts, func(a, b plotter.XY) int { return cmp.Compare(a.X, b.X) })

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Tonnes"
	p.X.Tick.Marker = yearTicks{}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("area line: %w", err)
	}
	line.Color = colorPrimary
	line.Width = vg.Points(1.5)
	line.FillColor = colorFill

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("area markers: %w", err)
	}
	scatter.GlyphStyle.Color = colorPrimary
	scatter.GlyphStyle.Radius = vg.Points(2.5)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}

	p.Add(plotter.NewGrid(), line, scatter)
	p.Y.Min = 0

	return render(w, p, opts)
}

// ImporterBars stacks the selected importers' tonnes per year.
func ImporterBars(w io.Writer, points []models.ImporterYearPoint, opts Options) error {
	opts = opts.withDefaults()
	if len(points) == 0 {
		return noData(w, opts)
	}

	var (
		years     []int
		importers []string
	)
	for _, pt := range points {
		if !slices.Contains(years, pt.Year) {
			years = append(years, pt.Year)
		}
		if !slices.Contains(importers, pt.Importer) {
			importers = append(importers, pt.Importer)
		}
	}
	slices.Sort(years)

	p := plot.New()
	p.Title.Text = opts.Title
	p.Y.Label.Text = "Tonnes"
	p.Legend.Top = true

	width := barWidth(opts.Width, len(years))
	var below *plotter.BarChart
	for i, name := range importers {
		values := make(plotter.Values, len(years))
		for _, pt := range points {
			if pt.Importer == name {
				values[slices.Index(years, pt.Year)] += pt.Tonnes
			}
		}

		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return fmt.Errorf("importer bars: %w", err)
		}
		bars.Color = PaletteColor(i)
		bars.LineStyle.Width = vg.Length(0)
		if below != nil {
			bars.StackOn(below)
		}
		below = bars

		p.Add(bars)
		p.Legend.Add(name, bars)
	}

	labels := make([]string, len(years))
	for i, y := range years {
		labels[i] = strconv.Itoa(y)
	}
	p.NominalX(labels...)
	p.Y.Min = 0

	return render(w, p, opts)
}

func barWidth(canvas vg.Length, n int) vg.Length {
	if n < 1 {
		n = 1
	}
	width := canvas / vg.Length(n*2)
	return min(width, vg.Points(28))
}

// yearTicks labels integer years only.
type yearTicks struct{}

func (yearTicks) Ticks(lo, hi float64) []plot.Tick {
	var ticks []plot.Tick
	for y := math.Ceil(lo); y <= hi; y++ {
		ticks = append(ticks, plot.Tick{Value: y, Label: strconv.Itoa(int(y))})
	}
	return ticks
}

func noData(w io.Writer, opts Options) error {
	p := plot.New()
	p.Title.Text = opts.Title
	p.HideAxes()

	caption, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: 0.5, Y: 0.5}},
		Labels: []string{noDataCaption},
	})
	if err != nil {
		return err
	}
	caption.TextStyle[0].XAlign = draw.XCenter
	caption.TextStyle[0].YAlign = draw.YCenter
	p.Add(caption)
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	return render(w, p, opts)
}

func render(w io.Writer, p *plot.Plot, opts Options) error {
	c := vgsvg.New(opts.Width, opts.Height)
	p.Draw(draw.New(c))
	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}
