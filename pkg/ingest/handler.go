package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/config"
	"github.com/brightfish/bluecanary/pkg/httpx"
	"github.com/brightfish/bluecanary/pkg/sdk/endpoint"
	"github.com/brightfish/bluecanary/pkg/storage"
)

// Route variables
const (
	VarVersion = "version"
	VarUUID    = "uuid"
	VarCounter = "counter"
)

// StorageChecker reports storage usage against a limit
type StorageChecker interface {
	GetUsage() (int64, error)
	GetLimit() int64
}

// Handler handles event ingestion and listing
type Handler struct {
	storage        storage.Storage
	tracker        *SeriesTracker
	storageChecker StorageChecker
	hub            *EventHub
	logger         *zap.Logger
	now            func() time.Time
}

// NewHandler creates a new ingest handler
func NewHandler(store storage.Storage, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		storage: store,
		tracker: NewSeriesTracker(),
		logger:  logger,
		now:     time.Now,
	}
}

// SetStorageChecker enables rejecting events once storage is full
func (h *Handler) SetStorageChecker(checker StorageChecker) {
	h.storageChecker = checker
}

// SetHub streams every accepted event to the hub's clients
func (h *Handler) SetHub(hub *EventHub) {
	h.hub = hub
}

// IngestResponse represents the response payload
type IngestResponse struct {
	Status  string `json:"status"`
	Metrics int    `json:"metrics"`
}

// ListResponse represents the stored events of a series
type ListResponse struct {
	Events []storage.Event `json:"events"`
	Count  int             `json:"count"`
}

// HandleEvent handles GET and POST /api/{version}/event/{uuid}/{counter}
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	version, series, err := pathSeries(r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	var payload *EventPayload
	if r.Method == http.MethodPost {
		payload, err = DecodeBody(http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes))
	} else {
		payload, err = DecodeQuery(r.URL.Query())
	}
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if err := ValidatePayload(payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.checkStorage(); err != nil {
		h.logger.Warn("rejecting event, storage limit reached", zap.Error(err))
		httpx.RespondError(w, http.StatusInsufficientStorage, err)
		return
	}

	if err := h.tracker.Check(series); err != nil {
		httpx.RespondError(w, http.StatusTooManyRequests, err)
		return
	}

	event, err := payload.Event(version, series, h.now())
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	if err := h.storage.Write(ctx, event); err != nil {
		h.logger.Error("failed to store event",
			zap.Error(err),
			zap.String("series", series.String()))
		httpx.RespondError(w, http.StatusInternalServerError, errors.New("failed to store event"))
		return
	}
	h.tracker.Record(series)

	h.logger.Debug("event stored",
		zap.String("series", series.String()),
		zap.Int("status_code", event.StatusCode),
		zap.Int("metrics", len(event.Metrics)))

	if h.hub != nil && h.hub.HasClients() {
		if err := h.hub.Broadcast(EventMessage{Type: "event", Event: event}); err != nil {
			h.logger.Warn("failed to broadcast event", zap.Error(err))
		}
	}

	httpx.RespondJSON(w, http.StatusAccepted, IngestResponse{
		Status:  "success",
		Metrics: len(event.Metrics),
	})
}

// HandleList handles GET /api/{version}/events/{uuid}/{counter}.
// Query parameters: limit, min_status, since and until (RFC 3339 or a
// duration back from now such as 1h).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, series, err := pathSeries(r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	q, err := h.parseListQuery(r, series)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ListTimeout)
	defer cancel()

	events, err := h.storage.List(ctx, q)
	if err != nil {
		h.logger.Error("failed to list events",
			zap.Error(err),
			zap.String("series", series.String()))
		httpx.RespondError(w, http.StatusInternalServerError, errors.New("failed to list events"))
		return
	}
	if events == nil {
		events = []storage.Event{}
	}

	httpx.RespondJSON(w, http.StatusOK, ListResponse{Events: events, Count: len(events)})
}

// HandleStats handles GET /v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.ListTimeout)
	defer cancel()

	stats, err := h.storage.Stats(ctx)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stats)
}

// HandleCardinalityStats handles GET /v1/cardinality
func (h *Handler) HandleCardinalityStats(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, h.tracker.Stats())
}

func (h *Handler) checkStorage() error {
	if h.storageChecker == nil {
		return nil
	}
	used, err := h.storageChecker.GetUsage()
	if err != nil {
		h.logger.Warn("failed to read storage usage", zap.Error(err))
		return nil
	}
	if limit := h.storageChecker.GetLimit(); limit > 0 && used >= limit {
		return fmt.Errorf("storage limit reached (%d of %d bytes)", used, limit)
	}
	return nil
}

func (h *Handler) parseListQuery(r *http.Request, series storage.Series) (storage.Query, error) {
	values := r.URL.Query()
	q := storage.Query{Series: series, Limit: config.DefaultListLimit}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return q, fmt.Errorf("invalid limit %q", raw)
		}
		q.Limit = min(limit, config.MaxListLimit)
	}

	if raw := values.Get("min_status"); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil || status < 0 || status > 7 {
			return q, fmt.Errorf("invalid min_status %q", raw)
		}
		q.MinStatus = status
	}

	var err error
	if q.Start, err = h.parseTime(values.Get("since")); err != nil {
		return q, fmt.Errorf("invalid since: %w", err)
	}
	if q.End, err = h.parseTime(values.Get("until")); err != nil {
		return q, fmt.Errorf("invalid until: %w", err)
	}

	return q, nil
}

// parseTime accepts RFC 3339 or a duration back from now
func (h *Handler) parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor a duration", raw)
	}
	return h.now().Add(-d), nil
}

// pathSeries reads and validates the route variables
func pathSeries(r *http.Request) (string, storage.Series, error) {
	vars := mux.Vars(r)
	series := storage.Series{UUID: vars[VarUUID], Counter: vars[VarCounter]}

	if !endpoint.IsUUIDValid(series.UUID) {
		return "", series, ErrInvalidUUID
	}
	if !endpoint.IsCounterNameValid(series.Counter) {
		return "", series, ErrInvalidCounter
	}
	return vars[VarVersion], series, nil
}
