package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ShipmentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipments_created_total",
		Help: "Total number of store orders created",
	})

	ShipmentItemsRequestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipment_items_requested_total",
		Help: "Total number of salad units requested by stores",
	})

	DeliveriesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_recorded_total",
		Help: "Total number of delivery lines upserted by production",
	})

	ShipmentsShippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipments_shipped_total",
		Help: "Total number of shipments marked as shipped",
	})

	SendAllFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "send_all_failures_total",
		Help: "Total number of shipments that failed during a send-all run",
	})

	LossesRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "losses_recorded_total",
		Help: "Total number of loss submissions by outcome",
	}, []string{"outcome"})

	LossItemsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loss_items_skipped_total",
		Help: "Total number of duplicate loss lines skipped",
	})

	CorrectionsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corrections_recorded_total",
		Help: "Total number of admin loss corrections",
	})

	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_failures_total",
		Help: "Total number of rejected requests by operation",
	}, []string{"operation"})

	ReportLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_latency_seconds",
		Help:    "Latency of report aggregation",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})

	ReportCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cache_hits_total",
		Help: "Total number of reports served from cache",
	}, []string{"report"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Total number of domain events handled by workers",
	}, []string{"worker", "event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
