package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"cocoa-dashboard/internal/errors"
	"cocoa-dashboard/internal/export"
	"cocoa-dashboard/internal/services"
)

type ExportHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewExportHandlers(analytics *services.Analytics, logger *slog.Logger) *ExportHandlers {
	return &ExportHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// HandleExport streams /export/{format}?year= as an attachment.
func (h *ExportHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.FormatFromString(r.PathValue("format"))
	if err != nil {
		writeError(w, r, h.logger, errors.ValidationWrap(err, "unsupported export format"))
		return
	}
	if !format.Streamable() {
		writeError(w, r, h.logger, errors.Validationf("%s export is only available from the CLI", format))
		return
	}

	year, err := yearParam(r, h.analytics)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	report, err := export.BuildReport(h.analytics, year)
	if err != nil {
		writeError(w, r, h.logger, errors.NotFoundWrap(err, "no data for year"))
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, report); err != nil {
		writeError(w, r, h.logger, errors.InternalWrap(err, "export failed"))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(year)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())

	h.logger.Debug("report exported", "format", format, "year", year, "bytes", buf.Len())
}
