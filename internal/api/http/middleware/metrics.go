package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/formai/engine/internal/metrics"
)

// Metrics records request counts and latencies per route pattern
func Metrics(m *metrics.NodeMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := newStatusRecorder(w)

			next.ServeHTTP(ww, r)

			m.RecordAPIRequest(r.Method, route(r), strconv.Itoa(ww.statusCode), time.Since(start))
		})
	}
}
