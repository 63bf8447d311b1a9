package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"cocoa-dashboard/internal/charts"
	"cocoa-dashboard/internal/config"
	"cocoa-dashboard/internal/errors"
	"cocoa-dashboard/internal/services"
	"cocoa-dashboard/internal/ui/templates"
)

type ChartHandlers struct {
	analytics *services.Analytics
	options   charts.Options
	logger    *slog.Logger
}

func NewChartHandlers(analytics *services.Analytics, cfg config.DashboardConfig, logger *slog.Logger) *ChartHandlers {
	opts := charts.DefaultOptions()
	opts.YMin, opts.YMax = cfg.YoYAxisMin, cfg.YoYAxisMax
	return &ChartHandlers{
		analytics: analytics,
		options:   opts,
		logger:    logger,
	}
}

// HandleChart serves /charts/{kind} as SVG.
func (h *ChartHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	geo, err := geoParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var buf bytes.Buffer
	switch kind := r.PathValue("kind"); kind {
	case templates.ChartYoY:
		err = charts.YoYBar(&buf, h.analytics.Aggregates(geo), h.options)

	case templates.ChartArea:
		err = charts.TonnesArea(&buf, h.analytics.Aggregates(geo), h.options)

	case templates.ChartTreemap:
		year, yerr := yearParam(r, h.analytics)
		if yerr != nil {
			writeError(w, r, h.logger, yerr)
			return
		}
		opts := h.options
		opts.Width = opts.Width * 4 / 3
		err = charts.Treemap(&buf, h.analytics.Importers(geo, year), opts)

	case templates.ChartImporters:
		importers := importerParams(r)
		if len(importers) == 0 {
			// No selection: the top importer of ?year=, or of the latest year.
			year, yerr := yearParam(r, h.analytics)
			if yerr != nil {
				writeError(w, r, h.logger, yerr)
				return
			}
			if top, ok := h.analytics.TopImporter(geo, year); ok {
				importers = []string{top.Importer}
			}
		}
		err = charts.ImporterBars(&buf, h.analytics.ImporterSeries(geo, importers), h.options)

	default:
		writeError(w, r, h.logger, errors.NotFound("unknown chart "+kind))
		return
	}

	if err != nil {
		writeError(w, r, h.logger, errors.InternalWrap(err, "chart rendering failed"))
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", cacheMaxAge)
	_, _ = w.Write(buf.Bytes())
}
