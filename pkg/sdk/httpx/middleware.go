// Package httpx reports HTTP server requests to Blue Canary.
package httpx

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/sdk/levels"
	"github.com/brightfish/bluecanary/pkg/sdk/metrics"
	"github.com/brightfish/bluecanary/pkg/sdk/params"
	"github.com/brightfish/bluecanary/pkg/sdk/transport"
)

// Reporter is the part of *sdk.Client the middleware needs.
type Reporter interface {
	Metric(key string, value float64, unit string, typ metrics.Type) error
	LogAsync(ctx context.Context, level levels.Level, message string, p params.Params) (*transport.Future, error)
}

// Option configures the middleware.
type Option func(*middleware)

// ReportAll reports successful requests too, with level ok.
func ReportAll() Option {
	return func(m *middleware) { m.reportAll = true }
}

// WithLogger sets the logger used for failed reports.
func WithLogger(l *zap.Logger) Option {
	return func(m *middleware) {
		if l != nil {
			m.logger = l
		}
	}
}

type middleware struct {
	reporter  Reporter
	reportAll bool
	logger    *zap.Logger

	// the reporter owns a metric batch and is not safe for concurrent use
	mu sync.Mutex
}

// Middleware returns HTTP middleware that reports requests as events:
//   - 5xx responses as error
//   - 4xx responses as warning
//   - everything else as ok, only with ReportAll
//
// Each reported event carries a "duration" metric in seconds.
//
// Usage:
//
//	client, _ := sdk.New(sdk.Config{...})
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", handler)
//	handler := httpx.Middleware(client)(mux)
//	http.ListenAndServe(":8080", handler)
func Middleware(reporter Reporter, opts ...Option) func(http.Handler) http.Handler {
	m := &middleware{
		reporter: reporter,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap ResponseWriter to capture status code
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.report(r, rw.statusCode, time.Since(start))
		})
	}
}

func (m *middleware) report(r *http.Request, status int, elapsed time.Duration) {
	level, ok := m.levelFor(status)
	if !ok {
		return
	}

	path := normalizePath(r.URL.Path)
	message := fmt.Sprintf("%s %s %d", r.Method, path, status)
	ctx := context.WithoutCancel(r.Context())

	m.mu.Lock()
	future, err := m.send(ctx, level, message, elapsed)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("failed to report request",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", path))
		return
	}
	if future == nil {
		return
	}

	go func() {
		if _, err := future.Wait(ctx); err != nil {
			m.logger.Warn("failed to report request",
				zap.Error(err),
				zap.String("method", r.Method),
				zap.String("path", path))
		}
	}()
}

func (m *middleware) send(ctx context.Context, level levels.Level, message string, elapsed time.Duration) (*transport.Future, error) {
	if err := m.reporter.Metric("duration", elapsed.Seconds(), "s", metrics.FloatType); err != nil {
		return nil, err
	}
	return m.reporter.LogAsync(ctx, level, message, nil)
}

func (m *middleware) levelFor(status int) (levels.Level, bool) {
	switch {
	case status >= 500:
		return levels.Error, true
	case status >= 400:
		return levels.Warning, true
	case m.reportAll:
		return levels.Ok, true
	default:
		return 0, false
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var (
	numericSegment = regexp.MustCompile(`/\d+`)
	uuidSegment    = regexp.MustCompile(`(?i)/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// normalizePath replaces ids in path so that messages stay groupable.
// Examples:
//   - /api/users/123 → /api/users/{id}
//   - /posts/456/comments → /posts/{id}/comments
func normalizePath(path string) string {
	path = uuidSegment.ReplaceAllString(path, "/{id}")
	return numericSegment.ReplaceAllString(path, "/{id}")
}
