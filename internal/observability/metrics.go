package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	scannedUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wavebroker",
			Subsystem: "scanner",
			Name:      "units_total",
			Help:      "Units classified by the frame scanner.",
		},
		[]string{"link", "kind"},
	)
	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wavebroker",
			Subsystem: "scanner",
			Name:      "framing_errors_total",
			Help:      "Malformed units rejected by the frame scanner.",
		},
		[]string{"link"},
	)
	receiveTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wavebroker",
			Subsystem: "channel",
			Name:      "receive_timeouts_total",
			Help:      "Receive calls that ended with no data.",
		},
		[]string{"channel"},
	)
	queueDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wavebroker",
			Subsystem: "channel",
			Name:      "queue_drops_total",
			Help:      "Messages dropped because a channel queue was full.",
		},
		[]string{"channel"},
	)
	fileOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wavebroker",
			Subsystem: "fileop",
			Name:      "requests_total",
			Help:      "File protocol requests by opcode and outcome.",
		},
		[]string{"op", "outcome"},
	)
	fileOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wavebroker",
			Subsystem: "fileop",
			Name:      "request_duration_seconds",
			Help:      "File protocol round trip in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	transferBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wavebroker",
			Subsystem: "fileop",
			Name:      "transfer_bytes_total",
			Help:      "File payload bytes moved to or from the device.",
		},
		[]string{"direction"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(scannedUnits, framingErrors, receiveTimeouts, queueDrops, fileOps, fileOpDuration, transferBytes)
	})
}

func RecordUnit(link, kind string) {
	RegisterMetrics()
	scannedUnits.WithLabelValues(link, kind).Inc()
}

func RecordFramingError(link string) {
	RegisterMetrics()
	framingErrors.WithLabelValues(link).Inc()
}

func RecordReceiveTimeout(channel string) {
	RegisterMetrics()
	receiveTimeouts.WithLabelValues(channel).Inc()
}

func RecordQueueDrop(channel string) {
	RegisterMetrics()
	queueDrops.WithLabelValues(channel).Inc()
}

func RecordFileOp(op, outcome string, duration time.Duration) {
	RegisterMetrics()
	fileOps.WithLabelValues(op, outcome).Inc()
	fileOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordTransfer(direction string, n int) {
	RegisterMetrics()
	transferBytes.WithLabelValues(direction).Add(float64(n))
}

// ServeMetrics exposes the default registry on addr until the server fails.
func ServeMetrics(addr string) error {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}
