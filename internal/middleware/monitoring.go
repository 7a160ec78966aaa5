package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexusai_http_requests_total",
			Help: "Количество HTTP-запросов",
		},
		[]string{"path", "method", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexusai_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	entitlementBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexusai_entitlement_blocks_total",
			Help: "Отказы гейта: 401 — нет сессии, 402 — исчерпана квота",
		},
		[]string{"reason"},
	)
)

// InitPrometheus регистрирует метрики; вызывается из main.
func InitPrometheus() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(entitlementBlocks)
}

// Monitor считает запросы и длительности; блокировки гейта — отдельно.
func Monitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(ww.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.URL.Path, r.Method).Observe(time.Since(start).Seconds())

		switch ww.statusCode {
		case http.StatusUnauthorized:
			entitlementBlocks.WithLabelValues("no_auth").Inc()
		case http.StatusPaymentRequired:
			entitlementBlocks.WithLabelValues("no_quota").Inc()
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}
