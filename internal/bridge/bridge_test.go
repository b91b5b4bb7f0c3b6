package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	phmerrors "github.com/vibesense/phmwatch/internal/errors"
	"github.com/vibesense/phmwatch/internal/events"
	"github.com/vibesense/phmwatch/internal/logger"
	"github.com/vibesense/phmwatch/internal/stream"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	msgs []published
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

var bridgeNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBridge(pub Publisher, target string, opts ...Option) (*Bridge, *events.Dispatcher) {
	d := events.New(events.WithLogger(logger.Noop()))
	base := []Option{WithLogger(logger.Noop()), WithClock(func() time.Time { return bridgeNow })}
	b := New(pub, d, func() string { return target }, append(base, opts...)...)
	return b, d
}

func TestBridgeForwardsEvents(t *testing.T) {
	pub := &fakePublisher{}
	b, d := newTestBridge(pub, "3")
	defer b.Close()

	d.Emit(events.FeatureUpdate, json.RawMessage(`{"rms_h":0.5}`))
	d.Emit(events.Alert, json.RawMessage(`{"alert_id":1}`))
	d.Emit(events.ReconnectFailed, stream.ReconnectFailedEvent{Target: "3", Attempts: 10})

	require.Len(t, pub.msgs, 3)
	assert.Equal(t, "phm.3.feature_update", pub.msgs[0].subject)
	assert.Equal(t, "phm.3.alert", pub.msgs[1].subject)
	assert.Equal(t, "phm.3.reconnect_failed", pub.msgs[2].subject)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &msg))
	assert.Equal(t, events.FeatureUpdate, msg.Event)
	assert.Equal(t, "3", msg.SensorID)
	assert.True(t, bridgeNow.Equal(msg.Time))
	assert.JSONEq(t, `{"rms_h":0.5}`, string(msg.Data))

	require.NoError(t, json.Unmarshal(pub.msgs[2].data, &msg))
	assert.JSONEq(t, `{"Target":"3","Attempts":10}`, string(msg.Data))

	sent, failed := b.Stats()
	assert.Equal(t, uint64(3), sent)
	assert.Equal(t, uint64(0), failed)
}

func TestBridgeIgnoresOtherEvents(t *testing.T) {
	pub := &fakePublisher{}
	b, d := newTestBridge(pub, "3")
	defer b.Close()

	d.Emit(events.Pong, json.RawMessage(`{}`))
	d.Emit(events.Raw, []byte("pong"))
	d.Emit(events.Error, stream.ErrorEvent{Err: errors.New("x")})

	assert.Empty(t, pub.msgs)
}

func TestBridgePublishFailureIsContained(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	b, d := newTestBridge(pub, "3")
	defer b.Close()

	assert.NotPanics(t, func() {
		d.Emit(events.FeatureUpdate, json.RawMessage(`{"rms_h":1}`))
	})

	sent, failed := b.Stats()
	assert.Equal(t, uint64(0), sent)
	assert.Equal(t, uint64(1), failed)
}

func TestBridgeSubject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		sensor string
		event  string
		want   string
	}{
		{"default prefix", "", "7", "alert", "phm.7.alert"},
		{"custom prefix", "plant.line1", "7", "alert", "plant.line1.7.alert"},
		{"trimmed prefix", ".vib.", "7", "alert", "vib.7.alert"},
		{"unsafe sensor", "", "a.b c*", "alert", "phm.a_b_c_.alert"},
		{"empty sensor", "", "", "connected", "phm.unknown.connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBridge(&fakePublisher{}, tt.sensor, WithPrefix(tt.prefix))
			defer b.Close()
			assert.Equal(t, tt.want, b.Subject(tt.sensor, tt.event))
		})
	}
}

func TestBridgeClose(t *testing.T) {
	pub := &fakePublisher{}
	b, d := newTestBridge(pub, "3")

	b.Close()
	d.Emit(events.FeatureUpdate, json.RawMessage(`{}`))

	assert.Empty(t, pub.msgs)
	assert.Equal(t, 0, d.ListenerCount(events.FeatureUpdate))
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"raw json", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"json bytes", []byte(`[1,2]`), `[1,2]`},
		{"text bytes", []byte(`pong`), `"pong"`},
		{"struct", stream.DisconnectedEvent{Code: 1000, Manual: true}, `{"Code":1000,"Reason":"","Manual":true,"WillRetry":false,"Attempt":0,"Delay":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encode(tt.payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}

	got, err := encode(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial("nats://127.0.0.1:1")
	require.Error(t, err)
	assert.True(t, phmerrors.IsCode(err, phmerrors.ErrTransport))
}
