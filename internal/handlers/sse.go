package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"cocoa-dashboard/internal/models"
	"cocoa-dashboard/internal/services"
	"cocoa-dashboard/internal/ui/templates"
)

// yearSignal accepts a JSON number or a numeric string, as bound select
// elements may send either. Anything else decodes to 0.
type yearSignal int

func (y *yearSignal) UnmarshalJSON(b []byte) error {
	n, err := strconv.Atoi(strings.Trim(string(b), `"`))
	if err != nil {
		*y = 0
		return nil
	}
	*y = yearSignal(n)
	return nil
}

type dashboardSignals struct {
	Year        yearSignal `json:"year"`
	Europe      []string   `json:"europe"`
	AsiaOceania []string   `json:"asiaOceania"`
	Americas    []string   `json:"americas"`
}

func (s dashboardSignals) selections() selections {
	return selections{
		models.GeoEurope:      s.Europe,
		models.GeoAsiaOceania: s.AsiaOceania,
		models.GeoAmericas:    s.Americas,
	}
}

type SSEHandlers struct {
	analytics *services.Analytics
	views     viewBuilder
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, defaultYear int, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		views:     viewBuilder{analytics: analytics, defaultYear: defaultYear},
		logger:    logger,
	}
}

// view reads the page signals. Unreadable signals fall back to defaults.
func (h *SSEHandlers) view(r *http.Request) templates.DashboardView {
	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Warn("read signals", "error", err)
	}
	return h.views.build(int(signals.Year), signals.selections())
}

func renderFragments(ctx context.Context, components ...templ.Component) (string, error) {
	var buf bytes.Buffer
	for _, c := range components {
		if err := c.Render(ctx, &buf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// patch renders components and sends them as one element patch, followed by
// optional signal updates.
func (h *SSEHandlers) patch(w http.ResponseWriter, r *http.Request, signals map[string]any, components ...templ.Component) {
	html, err := renderFragments(r.Context(), components...)
	if err != nil {
		h.logger.Error("render fragments", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}

	var signalData []byte
	if signals != nil {
		signalData, err = json.Marshal(signals)
		if err != nil {
			h.logger.Error("marshal signals", "error", err)
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElements(html); err != nil {
		h.logger.Warn("patch elements", "error", err)
		return
	}
	if signalData != nil {
		if err := sse.PatchSignals(signalData); err != nil {
			h.logger.Warn("patch signals", "error", err)
			return
		}
	}

	flush(w)
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	h.patch(w, r, nil, templates.KPIBlock(v), templates.TopImportersText(v))
}

func (h *SSEHandlers) HandleYoY(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	h.patch(w, r, nil, templates.ChartRow("yoy-charts", v.YoYCells()))
}

func (h *SSEHandlers) HandleArea(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	h.patch(w, r, nil, templates.ChartRow("area-charts", v.AreaCells()))
}

func (h *SSEHandlers) HandleTreemaps(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	h.patch(w, r, nil, templates.ChartRow("treemaps", v.TreemapCells()))
}

// HandleImporterBars redraws the country bar charts and writes the resolved
// selection back, so an emptied multiselect shows the top importer again.
func (h *SSEHandlers) HandleImporterBars(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	signals := v.Signals()
	delete(signals, "year")
	h.patch(w, r, signals, templates.ChartRow("importer-bars", v.ImporterBarCells()))
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	h.patch(w, r, v.Signals(),
		templates.KPIBlock(v),
		templates.TopImportersText(v),
		templates.ChartRow("yoy-charts", v.YoYCells()),
		templates.ChartRow("area-charts", v.AreaCells()),
		templates.ChartRow("treemaps", v.TreemapCells()),
		templates.CountrySelects(v),
		templates.ChartRow("importer-bars", v.ImporterBarCells()),
	)
}
