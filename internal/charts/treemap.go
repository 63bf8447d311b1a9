package charts

import (
	"cmp"
	"fmt"
	"image/color"
	"io"
	"math"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"cocoa-dashboard/internal/models"
)

// Rect is an axis-aligned rectangle with its origin at the lower-left corner.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Area() float64 { return r.W * r.H }

// Squarify lays out values as tiles filling bounds, keeping tile aspect
// ratios close to 1. The result is index-aligned with values; non-positive
// or non-finite values get a zero Rect.
func Squarify(values []float64, bounds Rect) []Rect {
	out := make([]Rect, len(values))
	if bounds.W <= 0 || bounds.H <= 0 {
		return out
	}

	order := make([]int, 0, len(values))
	var total float64
	for i, v := range values {
		if v > 0 && !math.IsInf(v, 0) {
			order = append(order, i)
			total += v
		}
	}
	if total == 0 {
		return out
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(values[b], values[a]) })

	scale := bounds.Area() / total
	areas := make([]float64, len(order))
	for i, idx := range order {
		areas[i] = values[idx] * scale
	}

	free := bounds
	start := 0
	for start < len(areas) {
		side := math.Min(free.W, free.H)
		end := start + 1
		for end < len(areas) && worst(areas[start:end+1], side) <= worst(areas[start:end], side) {
			end++
		}
		free = layoutRow(areas[start:end], order[start:end], free, out)
		start = end
	}
	return out
}

// worst is the largest aspect ratio in a row of areas laid along side.
func worst(row []float64, side float64) float64 {
	var sum float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, a := range row {
		sum += a
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	s2, w2 := sum*sum, side*side
	return math.Max(w2*hi/s2, s2/(w2*lo))
}

// layoutRow places a row along the shorter side of free and returns the
// space left over.
func layoutRow(row []float64, idx []int, free Rect, out []Rect) Rect {
	var sum float64
	for _, a := range row {
		sum += a
	}

	if free.W >= free.H {
		width := sum / free.H
		y := free.Y + free.H
		for i, a := range row {
			h := a / width
			y -= h
			out[idx[i]] = Rect{X: free.X, Y: y, W: width, H: h}
		}
		return Rect{X: free.X + width, Y: free.Y, W: free.W - width, H: free.H}
	}

	height := sum / free.W
	x := free.X
	for i, a := range row {
		w := a / height
		out[idx[i]] = Rect{X: x, Y: free.Y + free.H - height, W: w, H: height}
		x += w
	}
	return Rect{X: free.X, Y: free.Y, W: free.W, H: free.H - height}
}

const treemapSpan = 100.0

// Treemap draws importer tonnes for one geography and year as a squarified
// treemap. Tiles are coloured from the palette by rank and labelled when the
// name fits.
func Treemap(w io.Writer, importers []models.ImporterTonnes, opts Options) error {
	opts = opts.withDefaults()

	values := make([]float64, len(importers))
	var total float64
	for i, it := range importers {
		values[i] = it.Tonnes
		total += it.Tonnes
	}
	if total <= 0 {
		return noData(w, opts)
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.HideAxes()
	p.Add(&tiles{
		rects:  Squarify(values, Rect{W: treemapSpan, H: treemapSpan}),
		items:  importers,
		rank:   rankOrder(values),
		border: color.White,
	})
	p.X.Min, p.X.Max = 0, treemapSpan
	p.Y.Min, p.Y.Max = 0, treemapSpan

	return render(w, p, opts)
}

// rankOrder maps each value index to its rank by descending value.
func rankOrder(values []float64) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(values[b], values[a]) })

	rank := make([]int, len(values))
	for r, idx := range order {
		rank[idx] = r
	}
	return rank
}

type tiles struct {
	rects  []Rect
	items  []models.ImporterTonnes
	rank   []int
	border color.Color
}

func (t *tiles) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)

	label := draw.TextStyle{
		Color:   color.White,
		Font:    font.From(plot.DefaultFont, vg.Points(8)),
		Handler: plot.DefaultTextHandler,
		XAlign:  draw.XCenter,
		YAlign:  draw.YCenter,
	}

	for i, r := range t.rects {
		if r.Area() == 0 {
			continue
		}
		lo := vg.Point{X: trX(r.X), Y: trY(r.Y)}
		hi := vg.Point{X: trX(r.X + r.W), Y: trY(r.Y + r.H)}
		poly := []vg.Point{lo, {X: lo.X, Y: hi.Y}, hi, {X: hi.X, Y: lo.Y}}

		c.FillPolygon(PaletteColor(t.rank[i]), poly)
		c.StrokeLines(draw.LineStyle{Color: t.border, Width: vg.Points(1)}, append(poly, lo))

		caption := fmt.Sprintf("%s %.1f%%", t.items[i].Importer, t.items[i].SharePercent)
		if label.Width(caption) > hi.X-lo.X-vg.Points(4) {
			caption = t.items[i].Importer
		}
		if label.Width(caption) > hi.X-lo.X-vg.Points(4) || label.Height(caption) > hi.Y-lo.Y {
			continue
		}
		c.FillText(label, vg.Point{X: (lo.X + hi.X) / 2, Y: (lo.Y + hi.Y) / 2}, caption)
	}
}
