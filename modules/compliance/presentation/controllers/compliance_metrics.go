package controllers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	complianceAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliance",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total number of compliance API requests broken down by endpoint and result.",
	}, []string{"endpoint", "result"})

	complianceAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "compliance",
		Subsystem: "api",
		Name:      "latency_seconds",
		Help:      "Latency distribution for compliance API requests.",
		Buckets: []float64{
			0.005, 0.01, 0.025,
			0.05, 0.1, 0.25,
			0.5, 1, 2.5,
			5, 10, 30,
		},
	}, []string{"endpoint", "result"})
)

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func resultClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	}
	return "2xx"
}

func instrumentAPI(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		result := resultClass(rec.status)
		complianceAPIRequests.WithLabelValues(endpoint, result).Inc()
		complianceAPILatency.WithLabelValues(endpoint, result).Observe(time.Since(start).Seconds())
	}
}
