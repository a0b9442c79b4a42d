package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"warbler/internal/metrics"
)

const slowRequestThreshold = 2 * time.Second

// RequestLogger logs every request and records its latency by route pattern.
func RequestLogger(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := routePattern(r)
			m.RequestDurations.WithLabelValues(route).Observe(duration.Seconds())

			entry := log.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"route":      route,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   duration.String(),
				"request_id": chimw.GetReqID(r.Context()),
			})
			if duration > slowRequestThreshold {
				entry.Warn("[HTTP] Slow request")
				return
			}
			entry.Info("[HTTP] Request")
		})
	}
}
