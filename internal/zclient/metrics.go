package zclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zapi_connected",
			Help: "Whether the zapi client currently has an established connection to the route manager",
		},
	)

	metricDormant = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zapi_dormant",
			Help: "Set to 1 once the client has given up retrying after repeated connect failures",
		},
	)

	metricFailCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zapi_fail_count",
			Help: "Consecutive connect/IO failure count since the last successful connection",
		},
	)

	metricConnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zapi_connect_attempts_total",
			Help: "Total number of connect attempts made by the client",
		},
	)

	metricFramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapi_frames_sent_total",
			Help: "Total outbound frames sent by command",
		},
		[]string{"command"},
	)

	metricFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapi_frames_received_total",
			Help: "Total inbound frames dispatched by command",
		},
		[]string{"command"},
	)

	metricUnknownCommand = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapi_unknown_command_total",
			Help: "Inbound frames dropped because no handler was registered for their command",
		},
		[]string{"command"},
	)

	metricHandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zapi_handler_panics_total",
			Help: "Number of times a registered handler panicked and was recovered",
		},
	)
)
