package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"cocoa-dashboard/internal/errors"
	"cocoa-dashboard/internal/models"
	"cocoa-dashboard/internal/observability"
	"cocoa-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

var cacheHeaders = map[string]string{
	"Cache-Control": cacheMaxAge,
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	errors.WriteError(w, logger, err, observability.GetRequestID(r.Context()))
}

// geoParam reads the required geo query parameter.
func geoParam(r *http.Request) (models.Geography, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("geo"))
	if raw == "" {
		return "", errors.Validation("geo parameter is required")
	}
	geo, err := models.ParseGeography(raw)
	if err != nil {
		return "", errors.ValidationWrap(err, "invalid geo parameter")
	}
	return geo, nil
}

// yearParam reads the optional year query parameter. Absent means the latest
// loaded year.
func yearParam(r *http.Request, analytics *services.Analytics) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("year"))
	if raw == "" {
		year, ok := analytics.LatestYear()
		if !ok {
			return 0, errors.NoData("no import data loaded")
		}
		return year, nil
	}

	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validationf("invalid year %q", raw)
	}
	if !analytics.HasYear(year) {
		return 0, errors.NotFound(fmt.Sprintf("no data for year %d", year))
	}
	return year, nil
}

// importerParams returns the repeated importer parameters, trimmed and
// without blanks.
func importerParams(r *http.Request) []string {
	var importers []string
	for _, v := range r.URL.Query()["importer"] {
		if v = strings.TrimSpace(v); v != "" {
			importers = append(importers, v)
		}
	}
	return importers
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
