package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vibesense/phmwatch/internal/events"
	"github.com/vibesense/phmwatch/internal/logger"
)

const waitTimeout = 2 * time.Second

// fakeConn is an in-memory transport fed by the test.
type fakeConn struct {
	frames chan []byte
	errs   chan error
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	written  [][]byte
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, &CloseError{Code: CloseNormal, Reason: "closed locally"}
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

// fakeDialer hands out fakeConns, or fails when fail is set.
type fakeDialer struct {
	mu    sync.Mutex
	fail  bool
	dials []string
	conns chan *fakeConn
}

func newFakeDialer(fail bool) *fakeDialer {
	return &fakeDialer{fail: fail, conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, target string) (Conn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, target)
	fail := d.fail
	d.mu.Unlock()

	if fail {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) setFail(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

// fakeClock records scheduled retries; the test fires them explicitly.
type fakeClock struct {
	now       time.Time
	scheduled chan *fakeTimer
}

type fakeTimer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		scheduled: make(chan *fakeTimer, 32),
	}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{delay: d, fn: f}
	c.scheduled <- t
	return t
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (c *fakeClock) nextTimer(t *testing.T) *fakeTimer {
	t.Helper()
	select {
	case tm := <-c.scheduled:
		return tm
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a scheduled retry")
		return nil
	}
}

func (c *fakeClock) assertNothingScheduled(t *testing.T) {
	t.Helper()
	select {
	case tm := <-c.scheduled:
		t.Fatalf("unexpected retry scheduled after %s", tm.delay)
	case <-time.After(50 * time.Millisecond):
	}
}

// recorded is one emitted event.
type recorded struct {
	name    string
	payload any
}

// recorder collects events from a dispatcher onto a channel.
type recorder struct {
	ch chan recorded
}

func newRecorder(d *events.Dispatcher, names ...string) *recorder {
	r := &recorder{ch: make(chan recorded, 64)}
	for _, name := range names {
		name := name
		d.On(name, func(p any) { r.ch <- recorded{name: name, payload: p} })
	}
	return r
}

func (r *recorder) next(t *testing.T) recorded {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
		return recorded{}
	}
}

// expect waits for the next event and requires it to be name.
func (r *recorder) expect(t *testing.T, name string) any {
	t.Helper()
	ev := r.next(t)
	require.Equal(t, name, ev.name, "payload: %#v", ev.payload)
	return ev.payload
}

func (r *recorder) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("unexpected event %q: %#v", ev.name, ev.payload)
	case <-time.After(50 * time.Millisecond):
	}
}

var allEvents = []string{
	events.Connected, events.Disconnected, events.Data, events.Raw,
	events.Error, events.ReconnectFailed, events.FeatureUpdate, events.Alert, events.Pong,
}

func newTestManager(dialer Dialer, opts ...Option) (*Manager, *recorder, *fakeClock) {
	d := events.New(events.WithLogger(logger.Noop()))
	rec := newRecorder(d, allEvents...)
	clock := newFakeClock()
	base := []Option{WithClock(clock), WithLogger(logger.Noop())}
	m := NewManager(dialer, d, append(base, opts...)...)
	return m, rec, clock
}
