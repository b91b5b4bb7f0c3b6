package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	phmerrors "github.com/vibesense/phmwatch/internal/errors"
	"github.com/vibesense/phmwatch/internal/logger"
	"github.com/vibesense/phmwatch/internal/telemetry"
)

// DefaultCapacity is the number of alerts kept when no capacity is given.
const DefaultCapacity = 50

// Acknowledger marks an alert as handled on the backend.
type Acknowledger interface {
	Acknowledge(ctx context.Context, id string) error
}

// Ledger holds alerts newest first, bounded to its capacity.
// It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	capacity int
	items    []Alert

	ack     Acknowledger
	now     func() time.Time
	log     logger.Logger
	metrics *telemetry.Metrics
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithAcknowledger sets the backend used by Acknowledge.
func WithAcknowledger(a Acknowledger) LedgerOption {
	return func(l *Ledger) { l.ack = a }
}

// WithClock overrides the time source used to stamp ReceivedAt.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(lg logger.Logger) LedgerOption {
	return func(l *Ledger) {
		if lg != nil {
			l.log = lg
		}
	}
}

// WithMetrics counts received and acknowledged alerts.
func WithMetrics(m *telemetry.Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = m }
}

// NewLedger creates an empty ledger. capacity <= 0 uses DefaultCapacity.
func NewLedger(capacity int, opts ...LedgerOption) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Ledger{
		capacity: capacity,
		items:    make([]Alert, 0, capacity),
		now:      time.Now,
		log:      logger.NewEnvLogger("[alerts]"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add stamps ReceivedAt and inserts the alert at the front, dropping the
// oldest entries beyond capacity.
func (l *Ledger) Add(a Alert) {
	a.ReceivedAt = l.now()

	l.mu.Lock()
	l.items = append(l.items, Alert{})
	copy(l.items[1:], l.items)
	l.items[0] = a
	if len(l.items) > l.capacity {
		l.items = l.items[:l.capacity]
	}
	l.mu.Unlock()

	l.metrics.AlertReceived()
	l.log.Warn("alert received: %s", a.Message)
}

// Acknowledge asks the backend to acknowledge id and, only when that
// succeeds, removes the alert from the ledger.
func (l *Ledger) Acknowledge(ctx context.Context, id string) error {
	if l.ack == nil {
		err := phmerrors.New(phmerrors.ErrAck,
			"Alert acknowledgement is not configured",
			"Set server.api_base in the config file")
		l.metrics.Acknowledged(err)
		return err
	}

	if err := l.ack.Acknowledge(ctx, id); err != nil {
		l.metrics.Acknowledged(err)
		l.log.Error("acknowledge alert %s: %v", id, err)
		if phmerrors.IsCode(err, phmerrors.ErrAck) {
			return err
		}
		return phmerrors.WrapWithCode(err, phmerrors.ErrAck,
			fmt.Sprintf("Failed to acknowledge alert %s", id),
			"The alert was kept; retry once the backend is reachable")
	}
	l.metrics.Acknowledged(nil)

	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.items[:0]
	for _, a := range l.items {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	l.items = kept
	l.log.Info("alert %s acknowledged", id)
	return nil
}

// List returns a copy of the alerts, newest first.
func (l *Ledger) List() []Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Alert, len(l.items))
	copy(out, l.items)
	return out
}

// Latest returns the newest alert.
func (l *Ledger) Latest() (Alert, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.items) == 0 {
		return Alert{}, false
	}
	return l.items[0], true
}

// Len returns the number of alerts held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Cap returns the ledger capacity.
func (l *Ledger) Cap() int {
	return l.capacity
}

// Clear removes every alert.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = l.items[:0]
}
