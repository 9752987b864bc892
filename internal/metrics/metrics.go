package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_update_checks_total",
		Help: "Update check requests by decision outcome.",
	}, []string{"decision"})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_downloads_total",
		Help: "Served package downloads, partial transfers included.",
	}, []string{"partial"})

	Ingestions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_ingestions_total",
		Help: "Firmware ingestion attempts by result.",
	}, []string{"result"})

	AnalyticsRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_analytics_rebuilds_total",
		Help: "Analytics cache rebuilds by cache name.",
	}, []string{"cache"})
)
