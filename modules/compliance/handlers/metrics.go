package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "imports_committed_total",
		Help:      "Total number of committed imports broken down by kind.",
	}, []string{"kind"})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "import_rows_total",
		Help:      "Total number of imported rows broken down by kind and outcome.",
	}, []string{"kind", "outcome"})

	reportVersionsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "report_versions_published_total",
		Help:      "Total number of published report versions.",
	})
)
