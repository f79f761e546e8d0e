package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/brightfish/bluecanary/pkg/export"
	"github.com/brightfish/bluecanary/pkg/httpx"
	"github.com/brightfish/bluecanary/pkg/ingest"
	"github.com/brightfish/bluecanary/pkg/server/monitor"
)

// Version is reported by the health check.
const Version = "1.0.0"

var startTime = time.Now()

// StorageUsage represents current storage usage stats.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version"`
	Uptime    string                  `json:"uptime"`
	Retention monitor.RetentionStatus `json:"retention"`
}

// handleHealth returns service health status.
func handleHealth(retentionMonitor *monitor.RetentionMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		retention := retentionMonitor.Status()
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !retention.Healthy {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.RespondJSON(w, statusCode, HealthResponse{
			Status:    overallStatus,
			Version:   Version,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Retention: retention,
		})
	}
}

// handleStorageUsage returns current storage usage.
func handleStorageUsage(storageMonitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usedBytes, err := storageMonitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		httpx.RespondJSON(w, http.StatusOK, StorageUsage{
			UsedBytes: usedBytes,
			MaxBytes:  storageMonitor.GetLimit(),
		})
	}
}

// SetupRoutes configures all HTTP routes for the receiver.
func SetupRoutes(
	router *mux.Router,
	ingestHandler *ingest.Handler,
	exportHandler *export.Handler,
	storageMonitor *monitor.StorageMonitor,
	retentionMonitor *monitor.RetentionMonitor,
	hub *ingest.EventHub,
	port string,
) {
	router.Use(corsMiddleware(port))

	// Event reporting, the route the client library targets
	router.HandleFunc("/api/{version}/event/{uuid}/{counter}", ingestHandler.HandleEvent).
		Methods(http.MethodGet, http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/{version}/events/{uuid}/{counter}", ingestHandler.HandleList).
		Methods(http.MethodGet, http.MethodOptions)

	// Receiver administration
	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/stats", ingestHandler.HandleStats).Methods(http.MethodGet)
	api.HandleFunc("/cardinality", ingestHandler.HandleCardinalityStats).Methods(http.MethodGet)
	api.HandleFunc("/storage", handleStorageUsage(storageMonitor)).Methods(http.MethodGet)
	api.HandleFunc("/health", handleHealth(retentionMonitor)).Methods(http.MethodGet)
	api.HandleFunc("/ws", ingestHandler.HandleWebSocket(hub)).Methods(http.MethodGet)

	// Backup and restore
	api.HandleFunc("/export", exportHandler.HandleExport).Methods(http.MethodGet)
	api.HandleFunc("/import", exportHandler.HandleImport).Methods(http.MethodPost)

	router.HandleFunc("/health", handleHealth(retentionMonitor)).Methods(http.MethodGet)
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
