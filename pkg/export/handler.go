package export

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/config"
	"github.com/brightfish/bluecanary/pkg/httpx"
	"github.com/brightfish/bluecanary/pkg/sdk/endpoint"
	"github.com/brightfish/bluecanary/pkg/storage"
)

const (
	// DefaultExportWindow is the default time range for exports
	DefaultExportWindow = 7 * 24 * time.Hour

	// MaxImportBytes bounds the size of an uploaded backup
	MaxImportBytes = 64 << 20
)

// Handler handles export/import HTTP endpoints
type Handler struct {
	exporter *Exporter
	importer *Importer
	logger   *zap.Logger
}

// NewHandler creates a new export/import handler
func NewHandler(store storage.Storage, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		exporter: NewExporter(store),
		importer: NewImporter(store),
		logger:   logger,
	}
}

// HandleExport handles GET /v1/export
// Query params:
//   - uuid, counter: the series to export (required)
//   - format: "json" or "csv" (default: json)
//   - start: RFC3339 timestamp (default: 7 days ago)
//   - end: RFC3339 timestamp (default: now)
//   - min_status: lowest status code exported (default: 0)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	series := storage.Series{UUID: query.Get("uuid"), Counter: query.Get("counter")}
	if !endpoint.IsUUIDValid(series.UUID) || !endpoint.IsCounterNameValid(series.Counter) {
		httpx.RespondErrorString(w, http.StatusBadRequest, "a valid uuid and counter are required")
		return
	}

	format := query.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "format must be 'json' or 'csv'")
		return
	}

	end, err := parseTimeParam(query.Get("end"), time.Now())
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	start, err := parseTimeParam(query.Get("start"), end.Add(-DefaultExportWindow))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	if !start.Before(end) {
		httpx.RespondErrorString(w, http.StatusBadRequest, "start must be before end")
		return
	}
	if end.Sub(start) > config.DefaultRetention {
		httpx.RespondErrorString(w, http.StatusBadRequest,
			fmt.Sprintf("time range too large, maximum is %v", config.DefaultRetention))
		return
	}

	opts := ExportOptions{Series: series, Start: start, End: end}
	if raw := query.Get("min_status"); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil || status < 0 || status > 7 {
			httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid min_status %q", raw))
			return
		}
		opts.MinStatus = status
	}

	filename := fmt.Sprintf("%s-%s.%s", series.Counter, time.Now().Format("20060102-150405"), format)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))

	var result *ExportResult
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		result, err = h.exporter.ExportToJSON(r.Context(), w, opts)
	} else {
		w.Header().Set("Content-Type", "text/csv")
		result, err = h.exporter.ExportToCSV(r.Context(), w, opts)
	}

	if err != nil {
		// Headers may already be out; the body is truncated either way
		h.logger.Error("export failed", zap.Error(err), zap.String("series", series.String()))
		return
	}

	h.logger.Info("export completed",
		zap.Int("events", result.EventsExported),
		zap.String("series", result.Series),
		zap.String("format", format),
		zap.String("time_range", result.TimeRange))
}

// HandleImport handles POST /v1/import
// Accepts a JSON backup and writes its events to storage
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType != "application/json" {
		httpx.RespondErrorString(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	result, err := h.importer.ImportFromJSON(r.Context(), http.MaxBytesReader(w, r.Body, MaxImportBytes))
	if err != nil {
		h.logger.Error("import failed", zap.Error(err))
		status := http.StatusInternalServerError
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			status = http.StatusRequestEntityTooLarge
		} else if errors.Is(err, ErrInvalidBackup) {
			status = http.StatusBadRequest
		}
		httpx.RespondError(w, status, err)
		return
	}

	if n := len(result.Errors); n > 0 {
		h.logger.Warn("import skipped invalid events",
			zap.Int("skipped", n),
			zap.Strings("first_errors", result.Errors[:min(n, 10)]))
	}

	h.logger.Info("import completed",
		zap.Int("events", result.EventsImported),
		zap.String("time_range", result.TimeRange))

	httpx.RespondJSON(w, http.StatusOK, result)
}

// parseTimeParam parses an RFC3339 time parameter or returns the default
func parseTimeParam(param string, defaultTime time.Time) (time.Time, error) {
	if param == "" {
		return defaultTime, nil
	}
	t, err := time.Parse(time.RFC3339, param)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected RFC3339", param)
	}
	return t, nil
}
