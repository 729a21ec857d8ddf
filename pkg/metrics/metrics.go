// Package metrics holds the Prometheus collectors, registered on the
// default registry and served by GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesPublished counts accepted publishes by entry form:
	// "app", "topic", "header", "webhook".
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pushbolt_messages_published_total",
		Help: "Messages accepted for delivery, by publish source.",
	}, []string{"source"})

	// ActiveSubscribers tracks currently attached stream subscribers.
	ActiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pushbolt_active_subscribers",
		Help: "Currently attached WebSocket and SSE subscribers.",
	})

	// LaggedFrames counts frames dropped because a subscriber buffer
	// was full.
	LaggedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushbolt_fabric_lagged_frames_total",
		Help: "Frames dropped from slow subscriber buffers.",
	})

	// RateLimited counts requests rejected with 429.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushbolt_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter.",
	})

	// WebhookDeliveries counts outgoing webhook attempts by final
	// outcome: "delivered" or "failed".
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pushbolt_webhook_deliveries_total",
		Help: "Outgoing webhook deliveries by final outcome.",
	}, []string{"outcome"})
)
