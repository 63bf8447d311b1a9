package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cocoa-dashboard/internal/errors"
	"cocoa-dashboard/internal/models"
	"cocoa-dashboard/internal/services"
	"cocoa-dashboard/pkg/version"
)

const reloadTimeout = 30 * time.Second

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

type yearsResponse struct {
	Years  []int `json:"years"`
	Latest int   `json:"latest"`
}

func (h *APIHandlers) HandleYears(w http.ResponseWriter, r *http.Request) {
	latest, _ := h.analytics.LatestYear()
	errors.WriteSuccessWithHeaders(w, yearsResponse{
		Years:  h.analytics.Years(),
		Latest: latest,
	}, cacheHeaders)
}

// HandleAggregates returns every geography-year aggregate, or one
// geography's series when geo is given.
func (h *APIHandlers) HandleAggregates(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("geo") == "" {
		errors.WriteSuccessWithHeaders(w, h.analytics.AllAggregates(), cacheHeaders)
		return
	}

	geo, err := geoParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, h.analytics.Aggregates(geo), cacheHeaders)
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r, h.analytics)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	kpis, err := h.analytics.KPIs(year)
	if err != nil {
		writeError(w, r, h.logger, errors.NotFoundWrap(err, "no data for year"))
		return
	}
	errors.WriteSuccessWithHeaders(w, kpis, cacheHeaders)
}

func (h *APIHandlers) HandleImporters(w http.ResponseWriter, r *http.Request) {
	geo, err := geoParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	year, err := yearParam(r, h.analytics)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, h.analytics.Importers(geo, year), cacheHeaders)
}

type topImporter struct {
	Geo models.Geography `json:"geo"`
	models.ImporterTonnes
}

func (h *APIHandlers) HandleTopImporters(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r, h.analytics)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result := make([]topImporter, 0, 3)
	for _, geo := range models.AllGeographies() {
		if top, ok := h.analytics.TopImporter(geo, year); ok {
			result = append(result, topImporter{Geo: geo, ImporterTonnes: top})
		}
	}
	errors.WriteSuccessWithHeaders(w, result, cacheHeaders)
}

func (h *APIHandlers) HandleImporterSeries(w http.ResponseWriter, r *http.Request) {
	geo, err := geoParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	importers := importerParams(r)
	if len(importers) == 0 {
		writeError(w, r, h.logger, errors.Validation("at least one importer parameter is required"))
		return
	}
	errors.WriteSuccessWithHeaders(w, h.analytics.ImporterSeries(geo, importers), cacheHeaders)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.analytics.Stats()
	status := "healthy"
	if stats.RecordCount == 0 {
		status = "degraded"
	}

	errors.WriteSuccess(w, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version.Version,
		"records":   stats.RecordCount,
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

// HandleReload re-reads the CSV source. On failure the previous dataset
// stays in place.
func (h *APIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	start := time.Now()
	if err := h.analytics.Reload(ctx); err != nil {
		writeError(w, r, h.logger, errors.ServiceUnavailableWrap(err, "reload failed"))
		return
	}

	h.logger.Info("dataset reloaded", "duration", time.Since(start))
	errors.WriteSuccess(w, h.analytics.Stats())
}
