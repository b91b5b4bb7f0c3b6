// Package stream owns the real-time transport to the analysis backend: it
// opens the connection, classifies inbound frames into dispatcher events and
// reconnects with exponential backoff after unexpected closes.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	phmerrors "github.com/vibesense/phmwatch/internal/errors"
	"github.com/vibesense/phmwatch/internal/events"
	"github.com/vibesense/phmwatch/internal/logger"
	"github.com/vibesense/phmwatch/internal/telemetry"
)

// Manager holds at most one live transport for one target.
//
// Every explicit Connect or Disconnect bumps a generation counter. Read loops,
// dial goroutines and retry timers carry the generation they were started
// under and drop out silently once it no longer matches, so a superseded
// transport can never change state or emit events.
type Manager struct {
	dialer  Dialer
	events  *events.Dispatcher
	policy  Policy
	clock   Clock
	log     logger.Logger
	metrics *telemetry.Metrics

	mu       sync.Mutex
	target   string
	state    State
	attempts int
	gen      uint64
	conn     Conn
	timer    Timer
	cancel   context.CancelFunc
	backoff  *backoff.ExponentialBackOff

	writeMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy overrides the reconnect policy. Zero fields keep their defaults.
func WithPolicy(p Policy) Option {
	return func(m *Manager) {
		m.policy = p.withDefaults()
	}
}

// WithClock replaces the wall clock used for timestamps and retry timers.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics records connection activity on the given collectors.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a disconnected manager that emits on d.
func NewManager(dialer Dialer, d *events.Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		dialer: dialer,
		events: d,
		policy: DefaultPolicy(),
		clock:  realClock{},
		log:    logger.NewEnvLogger("[stream]"),
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.backoff = m.policy.newBackOff()
	return m
}

// Events returns the dispatcher this manager emits on.
func (m *Manager) Events() *events.Dispatcher {
	return m.events
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the reconnect attempt counter.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Target returns the current (or last) target.
func (m *Manager) Target() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// Connect discards any existing transport or pending retry and starts a new
// connection to target. It returns immediately; the outcome is reported
// through events.
func (m *Manager) Connect(target string) {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	old := m.conn
	m.conn = nil
	m.stopPendingLocked()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.target = target
	m.attempts = 0
	m.backoff.Reset()
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	m.log.Info("connecting to %s", target)
	go m.run(ctx, gen, target)
}

// Disconnect closes the transport and cancels any scheduled reconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	wasLive := m.state.live()
	conn := m.conn
	m.conn = nil
	m.stopPendingLocked()
	m.attempts = m.policy.MaxAttempts
	m.setStateLocked(StateDisconnected)
	target := m.target
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	if wasLive {
		m.log.Info("disconnected from %s (manual)", target)
		m.events.Emit(events.Disconnected, DisconnectedEvent{
			Code:   CloseNormal,
			Reason: "client disconnect",
			Manual: true,
		})
	}
}

// Send writes a frame when connected. Strings and byte slices go out as-is,
// anything else is JSON-encoded. When not connected it logs a warning and
// drops the payload; write failures are reported as events.Error.
func (m *Manager) Send(payload any) {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	target := m.target
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		m.log.Warn("cannot send: not connected (state %s)", state)
		return
	}

	data, err := encodePayload(payload)
	if err != nil {
		m.log.Error("cannot encode outbound payload: %v", err)
		return
	}

	m.writeMu.Lock()
	err = conn.WriteMessage(data)
	m.writeMu.Unlock()

	if err != nil {
		m.metrics.TransportError()
		m.log.Warn("write to %s failed: %v", target, err)
		m.events.Emit(events.Error, ErrorEvent{
			Target: target,
			Err:    phmerrors.Wrap(err, "Failed to send frame"),
		})
	}
}

// Ping asks the server for a pong frame.
func (m *Manager) Ping() {
	m.Send("ping")
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(p)
	}
}

// run dials and, on success, reads until the transport closes.
func (m *Manager) run(ctx context.Context, gen uint64, target string) {
	conn, err := m.dialer.Dial(ctx, target)
	if err != nil {
		if !m.current(gen) {
			return
		}
		m.metrics.TransportError()
		m.log.Warn("dial %s failed: %v", target, err)
		m.events.Emit(events.Error, ErrorEvent{Target: target, Err: err})
		m.handleClose(gen, CloseAbnormal, err.Error())
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.attempts = 0
	m.backoff.Reset()
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.log.Info("connected to %s", target)
	m.events.Emit(events.Connected, ConnectedEvent{Target: target, Time: m.clock.Now()})

	m.readLoop(gen, target, conn)
}

func (m *Manager) readLoop(gen uint64, target string, conn Conn) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			if !m.current(gen) {
				return
			}
			code, reason := CloseAbnormal, err.Error()
			var ce *CloseError
			if errors.As(err, &ce) {
				code, reason = ce.Code, ce.Reason
			} else {
				m.metrics.TransportError()
				m.events.Emit(events.Error, ErrorEvent{
					Target: target,
					Err:    phmerrors.Wrap(err, "Stream read failed"),
				})
			}
			m.handleClose(gen, code, reason)
			return
		}

		if !m.current(gen) {
			return
		}
		m.dispatch(frame)
	}
}

func (m *Manager) dispatch(frame []byte) {
	name, payload := decodeFrame(frame)
	if name == events.Raw {
		m.metrics.DecodeFault()
		m.log.Debug("non-JSON frame (%d bytes)", len(frame))
	}
	m.metrics.FrameReceived(name)
	m.events.Emit(name, payload)
}

// handleClose reacts to the transport of generation gen going away.
func (m *Manager) handleClose(gen uint64, code int, reason string) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.setStateLocked(StateDisconnected)

	ev := DisconnectedEvent{Code: code, Reason: reason}
	exhausted := m.attempts >= m.policy.MaxAttempts
	if exhausted {
		m.setStateLocked(StateFailed)
	} else {
		m.attempts++
		ev.WillRetry = true
		ev.Attempt = m.attempts
		ev.Delay = m.backoff.NextBackOff()
		m.setStateLocked(StateReconnecting)
	}
	target := m.target
	attempts := m.attempts
	m.mu.Unlock()

	m.log.Info("connection to %s closed: code=%d reason=%q", target, code, reason)
	m.events.Emit(events.Disconnected, ev)

	if exhausted {
		m.metrics.ReconnectExhausted()
		m.log.Error("giving up on %s after %d reconnect attempts", target, attempts)
		m.events.Emit(events.ReconnectFailed, ReconnectFailedEvent{Target: target, Attempts: attempts})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.state != StateReconnecting {
		return
	}
	m.metrics.ReconnectScheduled()
	m.log.Info("reconnecting to %s in %s (attempt %d/%d)", target, ev.Delay, ev.Attempt, m.policy.MaxAttempts)
	m.timer = m.clock.AfterFunc(ev.Delay, func() { m.retry(gen) })
}

// retry fires from the backoff timer.
func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	target := m.target
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	go m.run(ctx, gen, target)
}

// current reports whether gen is still the active generation.
func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// stopPendingLocked cancels the retry timer and any in-flight dial. Caller holds m.mu.
func (m *Manager) stopPendingLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// setStateLocked updates the state. Caller holds m.mu.
func (m *Manager) setStateLocked(s State) {
	m.state = s
	m.metrics.SetConnectionState(int(s))
}

// String describes the manager for logs.
func (m *Manager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("stream(%s, %s, attempt %d/%d)", m.target, m.state, m.attempts, m.policy.MaxAttempts)
}
