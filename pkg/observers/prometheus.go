package observers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/harunnryd/signbridge/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signbridge"

// PrometheusObserver turns session events into Prometheus series.
type PrometheusObserver struct {
	registry       *prometheus.Registry
	framesSent     *prometheus.CounterVec
	framesSkipped  *prometheus.CounterVec
	inbound        *prometheus.CounterVec
	inboundDropped *prometheus.CounterVec
	sessionErrors  *prometheus.CounterVec
	sessions       *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// NewPrometheusObserver registers its collectors, plus the Go and process
// collectors, on a fresh registry.
func NewPrometheusObserver() *PrometheusObserver {
	o := &PrometheusObserver{
		registry: prometheus.NewRegistry(),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound frames written to the service.",
		}, []string{"mode", "kind"}),
		framesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Capture ticks that produced no outbound frame.",
		}, []string{"mode", "reason"}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound messages handled, by kind.",
		}, []string{"mode", "kind"}),
		inboundDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_dropped_total",
			Help:      "Inbound messages dropped because they could not be decoded.",
		}, []string{"mode"}),
		sessionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Device and transport failures.",
		}, []string{"mode", "reason"}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently streaming.",
		}, []string{"mode"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_latency_seconds",
			Help:      "Time from an outbound frame to the next reply.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"mode"}),
	}
	o.registry.MustRegister(
		o.framesSent, o.framesSkipped, o.inbound, o.inboundDropped,
		o.sessionErrors, o.sessions, o.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

func (o *PrometheusObserver) Registry() *prometheus.Registry { return o.registry }

func (o *PrometheusObserver) RecordEvent(ev metrics.MetricsEvent) {
	mode := ev.Tags[metrics.TagMode]
	switch ev.Name {
	case metrics.EventSessionStarted:
		o.sessions.WithLabelValues(mode).Inc()
	case metrics.EventSessionStopped:
		o.sessions.WithLabelValues(mode).Dec()
	case metrics.EventFrameOut:
		o.framesSent.WithLabelValues(mode, ev.Tags[metrics.TagKind]).Inc()
	case metrics.EventFrameSkipped:
		o.framesSkipped.WithLabelValues(mode, ev.Tags[metrics.TagReason]).Inc()
	case metrics.EventInbound:
		o.inbound.WithLabelValues(mode, ev.Tags[metrics.TagKind]).Inc()
	case metrics.EventInboundDropped:
		o.inboundDropped.WithLabelValues(mode).Inc()
	case metrics.EventTransportError, metrics.EventDeviceError:
		o.sessionErrors.WithLabelValues(mode, ev.Tags[metrics.TagReason]).Inc()
	}
}

// ObserveLatency records one round trip; it plugs into LatencyObserver.OnSample.
func (o *PrometheusObserver) ObserveLatency(mode string, d time.Duration) {
	o.latency.WithLabelValues(mode).Observe(d.Seconds())
}

const defaultReadHeaderTimeout = 10 * time.Second

// Exporter serves /metrics and /health for a registry.
type Exporter struct {
	addr     string
	registry *prometheus.Registry
	mu       sync.Mutex
	server   *http.Server
}

func NewExporter(addr string, registry *prometheus.Registry) *Exporter {
	return &Exporter{addr: addr, registry: registry}
}

func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Run serves until ctx ends, then shuts the server down.
func (e *Exporter) Run(ctx context.Context) error {
	e.mu.Lock()
	e.server = &http.Server{
		Addr:              e.addr,
		Handler:           e.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	srv := e.server
	e.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

var _ metrics.Observer = (*PrometheusObserver)(nil)
