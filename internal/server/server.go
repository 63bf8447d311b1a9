package server

import (
	"log/slog"
	"net/http"

	"cocoa-dashboard/internal/config"
	"cocoa-dashboard/internal/handlers"
	"cocoa-dashboard/internal/middleware"
	"cocoa-dashboard/internal/services"
)

type Server struct {
	analytics      *services.Analytics
	mux            *http.ServeMux
	logger         *slog.Logger
	pageHandlers   *handlers.PageHandlers
	apiHandlers    *handlers.APIHandlers
	sseHandlers    *handlers.SSEHandlers
	chartHandlers  *handlers.ChartHandlers
	exportHandlers *handlers.ExportHandlers
}

func NewServer(analytics *services.Analytics, cfg config.DashboardConfig, logger *slog.Logger) *Server {
	s := &Server{
		analytics:      analytics,
		mux:            http.NewServeMux(),
		logger:         logger,
		pageHandlers:   handlers.NewPageHandlers(analytics, cfg.DefaultYear, logger),
		apiHandlers:    handlers.NewAPIHandlers(analytics, logger),
		sseHandlers:    handlers.NewSSEHandlers(analytics, cfg.DefaultYear, logger),
		chartHandlers:  handlers.NewChartHandlers(analytics, cfg, logger),
		exportHandlers: handlers.NewExportHandlers(analytics, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", s.pageHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	s.mux.HandleFunc("POST /admin/reload", s.apiHandlers.HandleReload)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/years", s.apiHandlers.HandleYears)
	s.mux.HandleFunc("GET /api/aggregates", s.apiHandlers.HandleAggregates)
	s.mux.HandleFunc("GET /api/kpis", s.apiHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /api/importers", s.apiHandlers.HandleImporters)
	s.mux.HandleFunc("GET /api/top-importers", s.apiHandlers.HandleTopImporters)
	s.mux.HandleFunc("GET /api/importer-series", s.apiHandlers.HandleImporterSeries)

	// Charts and downloads
	s.mux.HandleFunc("GET /charts/{kind}", s.chartHandlers.HandleChart)
	s.mux.HandleFunc("GET /export/{format}", s.exportHandlers.HandleExport)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/kpis", s.sseHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /sse/yoy", s.sseHandlers.HandleYoY)
	s.mux.HandleFunc("GET /sse/area", s.sseHandlers.HandleArea)
	s.mux.HandleFunc("GET /sse/treemaps", s.sseHandlers.HandleTreemaps)
	s.mux.HandleFunc("GET /sse/importer-bars", s.sseHandlers.HandleImporterBars)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler wraps the server in the full middleware chain, recovery outermost.
func (s *Server) Handler(sec config.SecurityConfig, limiter *middleware.RateLimiter) http.Handler {
	chain := middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logger(s.logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(sec),
		middleware.TrustedProxy(sec),
		middleware.RateLimit(limiter, s.logger),
	)
	return chain(s)
}
