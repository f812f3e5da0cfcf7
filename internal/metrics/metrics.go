package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketchat_gateway_active_connections",
		Help: "Currently open websocket connections.",
	})

	InboundOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketchat_gateway_inbound_ops_total",
		Help: "Client operations received, by op type.",
	}, []string{"type"})

	BroadcastFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_gateway_broadcast_frames_total",
		Help: "Frames fanned out to room members.",
	})

	ForbiddenCloses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_gateway_forbidden_closes_total",
		Help: "Connections closed with code 4003 after a failed access check.",
	})
)
