package controllers

import "github.com/prometheus/client_golang/prometheus"

func ComplianceRequests(endpoint, result string) prometheus.Counter {
	return complianceAPIRequests.WithLabelValues(endpoint, result)
}
