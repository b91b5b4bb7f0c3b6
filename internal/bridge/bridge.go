// Package bridge republishes stream events on NATS so other services can
// consume a sensor's features and alerts without their own WebSocket.
package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	phmerrors "github.com/vibesense/phmwatch/internal/errors"
	"github.com/vibesense/phmwatch/internal/events"
	"github.com/vibesense/phmwatch/internal/logger"
)

// DefaultSubjectPrefix is the first subject token when none is configured.
const DefaultSubjectPrefix = "phm"

// Forwarded lists the events republished by a Bridge.
var Forwarded = []string{
	events.FeatureUpdate,
	events.Alert,
	events.Connected,
	events.Disconnected,
	events.ReconnectFailed,
}

// Publisher sends a message on a subject. *nats.Conn implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON body published for every event.
type Message struct {
	Event    string          `json:"event"`
	SensorID string          `json:"sensor_id"`
	Time     time.Time       `json:"time"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Bridge subscribes to a dispatcher and forwards events to a Publisher.
type Bridge struct {
	pub    Publisher
	d      *events.Dispatcher
	prefix string
	target func() string
	now    func() time.Time
	log    logger.Logger

	mu        sync.Mutex
	listeners map[string]events.ListenerID
	published uint64
	failed    uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithPrefix sets the first subject token.
func WithPrefix(prefix string) Option {
	return func(b *Bridge) {
		if p := strings.Trim(prefix, "."); p != "" {
			b.prefix = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// New subscribes to d and publishes every forwarded event on
// <prefix>.<target>.<event>, where target is read at publish time.
func New(pub Publisher, d *events.Dispatcher, target func() string, opts ...Option) *Bridge {
	b := &Bridge{
		pub:       pub,
		d:         d,
		prefix:    DefaultSubjectPrefix,
		target:    target,
		now:       time.Now,
		log:       logger.NewEnvLogger("[bridge]"),
		listeners: make(map[string]events.ListenerID, len(Forwarded)),
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, name := range Forwarded {
		name := name
		b.listeners[name] = d.On(name, func(payload any) { b.forward(name, payload) })
	}
	return b
}

// Subject returns the subject an event for sensor is published on.
func (b *Bridge) Subject(sensor, event string) string {
	return b.prefix + "." + token(sensor) + "." + token(event)
}

func (b *Bridge) forward(name string, payload any) {
	sensor := b.target()

	data, err := encode(payload)
	if err != nil {
		b.log.Warn("cannot encode %s for publishing: %v", name, err)
		b.count(false)
		return
	}

	body, err := json.Marshal(Message{Event: name, SensorID: sensor, Time: b.now(), Data: data})
	if err != nil {
		b.log.Warn("cannot encode %s message: %v", name, err)
		b.count(false)
		return
	}

	subject := b.Subject(sensor, name)
	if err := b.pub.Publish(subject, body); err != nil {
		b.log.Warn("publish %s failed: %v", subject, err)
		b.count(false)
		return
	}
	b.log.Debug("published %s (%d bytes)", subject, len(body))
	b.count(true)
}

func (b *Bridge) count(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		b.published++
	} else {
		b.failed++
	}
}

// Stats returns how many messages were published and how many failed.
func (b *Bridge) Stats() (published, failed uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published, b.failed
}

// Close unsubscribes from the dispatcher. It does not close the publisher.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, id := range b.listeners {
		b.d.Off(name, id)
	}
	b.listeners = make(map[string]events.ListenerID)
}

// encode turns a dispatcher payload into JSON, passing raw JSON through.
func encode(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		if json.Valid(p) {
			return p, nil
		}
		return json.Marshal(string(p))
	default:
		return json.Marshal(p)
	}
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Dial connects to a NATS server for use as a Publisher.
func Dial(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("phmwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, phmerrors.WrapWithCode(err, phmerrors.ErrTransport,
			fmt.Sprintf("Cannot connect to NATS at %s", url),
			"Check nats.url or run without --nats-url")
	}
	return nc, nil
}
