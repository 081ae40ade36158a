package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds all rover collectors. The diagnostics HTTP server exposes
// it at /metrics.
var Registry = prometheus.NewRegistry()

var (
	// UtterancesParsed counts parser outcomes. result: matched/no_match.
	UtterancesParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rover_utterances_parsed_total",
			Help: "Total number of utterances run through the command parser.",
		},
		[]string{"result"},
	)

	// CommandsSent counts transport sends. status: success/failed.
	CommandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rover_commands_sent_total",
			Help: "Total number of commands written to the serial link.",
		},
		[]string{"status", "kind"},
	)

	// CommandsDropped counts commands rejected by a full queue.
	CommandsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rover_commands_dropped_total",
			Help: "Total number of commands dropped because the queue was full.",
		},
	)

	// QueueDepth tracks the pending command count.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rover_queue_depth",
			Help: "Number of commands currently waiting in the priority queue.",
		},
	)

	// ReconnectAttempts counts transport reconnection cycles.
	ReconnectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rover_transport_reconnect_attempts_total",
			Help: "Total number of serial reconnection attempts.",
		},
	)

	// TransportConnected is 1 while the serial link is up.
	TransportConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rover_transport_connected",
			Help: "Whether the serial transport is currently connected (1) or not (0).",
		},
	)

	// SendLatency observes the wall time of one command write.
	SendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rover_command_send_latency_seconds",
			Help:    "Latency of writing one command line to the serial device.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	Registry.MustRegister(
		UtterancesParsed,
		CommandsSent,
		CommandsDropped,
		QueueDepth,
		ReconnectAttempts,
		TransportConnected,
		SendLatency,
	)
}
