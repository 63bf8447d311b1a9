package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cocoa-dashboard/internal/services"
	"cocoa-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type PageHandlers struct {
	views  viewBuilder
	logger *slog.Logger
}

func NewPageHandlers(analytics *services.Analytics, defaultYear int, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		views:  viewBuilder{analytics: analytics, defaultYear: defaultYear},
		logger: logger,
	}
}

// HandleDashboard renders the full page at GET /{$}. ?year= preselects a year.
func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	view := h.views.build(year, nil)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := templates.Dashboard(view).Render(ctx, w); err != nil {
		h.logger.Error("render dashboard", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}
