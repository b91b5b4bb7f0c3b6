// Package realtime is the consumer side of the stream: it subscribes to the
// dispatcher and keeps the connection status, the feature series and its
// display window, the latest feature values and the alert ledger.
package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vibesense/phmwatch/internal/alerts"
	"github.com/vibesense/phmwatch/internal/events"
	"github.com/vibesense/phmwatch/internal/logger"
	"github.com/vibesense/phmwatch/internal/series"
	"github.com/vibesense/phmwatch/internal/stream"
	"github.com/vibesense/phmwatch/internal/telemetry"
)

// Status is the connection status shown to users.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
	StatusFailed       Status = "failed"
)

// Client is the connection the store drives. *stream.Manager implements it.
type Client interface {
	Connect(target string)
	Disconnect()
	Ping()
	Events() *events.Dispatcher
	Attempts() int
}

// Store holds everything the dashboard renders. All methods are safe for
// concurrent use; event handlers run on the connection goroutines.
type Store struct {
	client   Client
	features *series.Buffer
	signals  *series.Buffer
	window   *series.Window
	ledger   *alerts.Ledger

	bufferSize int
	windowLen  int
	now        func() time.Time
	newID      func() string
	log        logger.Logger
	metrics    *telemetry.Metrics

	mu        sync.RWMutex
	status    Status
	sensor    string
	latest    map[string]float64
	lastPong  time.Time
	lastErr   error
	updates   uint64
	listeners map[string]events.ListenerID
}

// Option configures a Store.
type Option func(*Store)

// WithBufferSize sets the capacity of the feature and signal buffers.
func WithBufferSize(n int) Option {
	return func(s *Store) { s.bufferSize = n }
}

// WithWindow sets the display window length. Zero spans the whole buffer.
func WithWindow(n int) Option {
	return func(s *Store) { s.windowLen = n }
}

// WithLedger replaces the default alert ledger.
func WithLedger(l *alerts.Ledger) Option {
	return func(s *Store) { s.ledger = l }
}

// WithClock overrides the time source for samples without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how local ids are assigned to alerts that arrive
// without one.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records buffer activity.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a store and subscribes it to the client's events.
func NewStore(client Client, opts ...Option) *Store {
	s := &Store{
		client:    client,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger.NewEnvLogger("[realtime]"),
		status:    StatusDisconnected,
		latest:    make(map[string]float64),
		listeners: make(map[string]events.ListenerID),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.features = series.NewBuffer(s.bufferSize, series.FeatureChannels...)
	s.signals = series.NewBuffer(s.bufferSize, series.SignalChannels...)
	s.window = series.NewWindow(s.features, s.windowLen)
	if s.ledger == nil {
		s.ledger = alerts.NewLedger(alerts.DefaultCapacity,
			alerts.WithClock(s.now),
			alerts.WithLogger(s.log),
			alerts.WithMetrics(s.metrics),
		)
	}

	s.subscribe()
	return s
}

func (s *Store) subscribe() {
	d := s.client.Events()
	handlers := map[string]events.Handler{
		events.Connected:       s.onConnected,
		events.Disconnected:    s.onDisconnected,
		events.Error:           s.onError,
		events.ReconnectFailed: s.onReconnectFailed,
		events.FeatureUpdate:   s.onFeatureUpdate,
		events.Alert:           s.onAlert,
		events.Pong:            s.onPong,
	}
	for name, h := range handlers {
		s.listeners[name] = d.On(name, h)
	}
}

// Close unsubscribes the store from the dispatcher.
func (s *Store) Close() {
	d := s.client.Events()
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, id := range s.listeners {
		d.Off(name, id)
	}
	s.listeners = make(map[string]events.ListenerID)
}

// Connect subscribes to sensorID. Connecting to the sensor that is already
// connected does nothing.
func (s *Store) Connect(sensorID string) {
	s.mu.Lock()
	if s.sensor == sensorID && s.status == StatusConnected {
		s.mu.Unlock()
		s.log.Debug("already connected to sensor %s", sensorID)
		return
	}
	s.sensor = sensorID
	s.status = StatusConnecting
	s.mu.Unlock()

	s.client.Connect(sensorID)
}

// Disconnect closes the stream. Buffers and alerts are kept.
func (s *Store) Disconnect() {
	s.client.Disconnect()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusDisconnected
	s.sensor = ""
}

// Reconnect forces a fresh connection to the current sensor.
func (s *Store) Reconnect() {
	s.mu.Lock()
	sensor := s.sensor
	if sensor != "" {
		s.status = StatusConnecting
	}
	s.mu.Unlock()

	if sensor != "" {
		s.client.Connect(sensor)
	}
}

// Ping asks the server for a pong.
func (s *Store) Ping() {
	s.client.Ping()
}

func (s *Store) onConnected(any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusConnected
	s.lastErr = nil
}

func (s *Store) onDisconnected(payload any) {
	status := StatusDisconnected
	if ev, ok := payload.(stream.DisconnectedEvent); ok && ev.WillRetry {
		status = StatusReconnecting
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Store) onError(payload any) {
	var err error
	if ev, ok := payload.(stream.ErrorEvent); ok {
		err = ev.Err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusError
	s.lastErr = err
}

func (s *Store) onReconnectFailed(any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
}

func (s *Store) onFeatureUpdate(payload any) {
	u, err := ParseFeatureUpdate(payload)
	if err != nil {
		s.log.Warn("dropping feature update: %v", err)
		return
	}
	s.UpdateFeatures(u)
}

// UpdateFeatures records one feature sample: it is pushed into the buffer,
// merged into the latest values and the window is advanced.
func (s *Store) UpdateFeatures(u FeatureUpdate) {
	ts := u.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	evicted := s.features.Push(ts, u.Values)
	s.window.Advance()

	s.mu.Lock()
	for k, v := range u.Values {
		s.latest[k] = v
	}
	s.updates++
	s.mu.Unlock()

	s.metrics.ObserveBuffer(s.features.Len(), evicted)
	start, end := s.window.Bounds()
	s.log.Debug("features updated: count=%d window=[%d,%d)", s.features.Len(), start, end)
}

// ParseAlert decodes an alert event payload.
func ParseAlert(payload any) (alerts.Alert, error) {
	data, err := payloadBytes(payload)
	if err != nil {
		return alerts.Alert{}, err
	}
	return alerts.Parse(data)
}

func (s *Store) onAlert(payload any) {
	a, err := ParseAlert(payload)
	if err != nil {
		s.log.Warn("dropping alert: %v", err)
		return
	}
	if a.ID == "" {
		a.ID = s.newID()
	}
	s.ledger.Add(a)
}

func (s *Store) onPong(any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPong = s.now()
}

// PushSignal appends a raw vibration sample to the signal buffer.
func (s *Store) PushSignal(ts time.Time, horizontal, vertical float64) {
	s.signals.Push(ts, map[string]float64{"horizontal": horizontal, "vertical": vertical})
}

// Signals returns the most recent n raw samples.
func (s *Store) Signals(n int) series.Snapshot {
	return s.signals.Last(n)
}

// ConnectionStatus returns the current status.
func (s *Store) ConnectionStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Sensor returns the sensor the store is subscribed to, or "".
func (s *Store) Sensor() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sensor
}

// Attempts returns the reconnect attempt counter of the client.
func (s *Store) Attempts() int {
	return s.client.Attempts()
}

// LastError returns the most recent transport error since the last connect.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LastPong returns when the last pong arrived.
func (s *Store) LastPong() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPong
}

// Updates returns the number of feature updates received.
func (s *Store) Updates() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

// CurrentWindow returns the samples inside the display window.
func (s *Store) CurrentWindow() series.Snapshot {
	return s.window.Slice()
}

// WindowBounds returns the window's [start, end) in buffer positions.
func (s *Store) WindowBounds() (start, end int) {
	return s.window.Bounds()
}

// FeatureCount returns the number of buffered feature samples.
func (s *Store) FeatureCount() int {
	return s.features.Len()
}

// LatestFeatures returns a copy of the most recent value of every feature.
func (s *Store) LatestFeatures() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}

// LatestFeatureNames returns the names of every feature seen, sorted.
func (s *Store) LatestFeatureNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.latest))
	for k := range s.latest {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FormatFeature renders the latest value of name with four decimals, or "--".
func (s *Store) FormatFeature(name string) string {
	s.mu.RLock()
	v, ok := s.latest[name]
	s.mu.RUnlock()
	return FormatValue(v, ok)
}

// Alerts returns the alert ledger contents, newest first.
func (s *Store) Alerts() []alerts.Alert {
	return s.ledger.List()
}

// LatestAlert returns the newest alert.
func (s *Store) LatestAlert() (alerts.Alert, bool) {
	return s.ledger.Latest()
}

// AcknowledgeAlert acknowledges id on the backend and drops it locally on success.
func (s *Store) AcknowledgeAlert(ctx context.Context, id string) error {
	return s.ledger.Acknowledge(ctx, id)
}

// ClearBuffers empties the feature and signal buffers, the alert ledger and
// the latest values, and rewinds the window.
func (s *Store) ClearBuffers() {
	s.features.Clear()
	s.signals.Clear()
	s.window.Reset()
	s.ledger.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = make(map[string]float64)
	s.metrics.ObserveBuffer(0, false)
}
