// Package telemetry exposes Prometheus collectors for the streaming client.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "phmwatch"

// Metrics groups every collector. A nil *Metrics is valid and records nothing,
// so components can take one optionally.
type Metrics struct {
	frames            *prometheus.CounterVec
	decodeFaults      prometheus.Counter
	transportErrors   prometheus.Counter
	reconnectAttempts prometheus.Counter
	reconnectFailures prometheus.Counter
	connectionState   prometheus.Gauge
	bufferLength      prometheus.Gauge
	evictions         prometheus.Counter
	alertsReceived    prometheus.Counter
	acknowledgements  *prometheus.CounterVec
	handlerPanics     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound stream frames by emitted event name.",
		}, []string{"event"}),
		decodeFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_faults_total",
			Help:      "Inbound frames that were not valid JSON.",
		}),
		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Dial, read and write failures on the stream transport.",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled after an unexpected close.",
		}),
		reconnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_exhausted_total",
			Help:      "Times the reconnect budget was exhausted.",
		}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=failed).",
		}),
		bufferLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feature_buffer_length",
			Help:      "Samples currently held in the feature buffer.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_buffer_evictions_total",
			Help:      "Samples dropped from the feature buffer because it was full.",
		}),
		alertsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_received_total",
			Help:      "Alerts added to the ledger.",
		}),
		acknowledgements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_acknowledgements_total",
			Help:      "Alert acknowledgement calls by result.",
		}, []string{"result"}),
		handlerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Event handlers that panicked, by event name.",
		}, []string{"event"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.frames, m.decodeFaults, m.transportErrors,
			m.reconnectAttempts, m.reconnectFailures, m.connectionState,
			m.bufferLength, m.evictions, m.alertsReceived,
			m.acknowledgements, m.handlerPanics,
		)
	}
	return m
}

func (m *Metrics) FrameReceived(event string) {
	if m != nil {
		m.frames.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) DecodeFault() {
	if m != nil {
		m.decodeFaults.Inc()
	}
}

func (m *Metrics) TransportError() {
	if m != nil {
		m.transportErrors.Inc()
	}
}

func (m *Metrics) ReconnectScheduled() {
	if m != nil {
		m.reconnectAttempts.Inc()
	}
}

func (m *Metrics) ReconnectExhausted() {
	if m != nil {
		m.reconnectFailures.Inc()
	}
}

// SetConnectionState records the numeric value of the current state.
func (m *Metrics) SetConnectionState(v int) {
	if m != nil {
		m.connectionState.Set(float64(v))
	}
}

// ObserveBuffer records the buffer length and whether the last push evicted.
func (m *Metrics) ObserveBuffer(length int, evicted bool) {
	if m == nil {
		return
	}
	m.bufferLength.Set(float64(length))
	if evicted {
		m.evictions.Inc()
	}
}

func (m *Metrics) AlertReceived() {
	if m != nil {
		m.alertsReceived.Inc()
	}
}

// Acknowledged records an acknowledgement outcome.
func (m *Metrics) Acknowledged(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.acknowledgements.WithLabelValues(result).Inc()
}

func (m *Metrics) HandlerPanic(event string) {
	if m != nil {
		m.handlerPanics.WithLabelValues(event).Inc()
	}
}

// Handler returns an HTTP handler exposing the gatherer in Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
