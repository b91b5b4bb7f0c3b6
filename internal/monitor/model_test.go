package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibesense/phmwatch/internal/alerts"
	"github.com/vibesense/phmwatch/internal/events"
	"github.com/vibesense/phmwatch/internal/logger"
	"github.com/vibesense/phmwatch/internal/realtime"
	"github.com/vibesense/phmwatch/internal/series"
	"github.com/vibesense/phmwatch/internal/stream"
)

// fakeClient stands in for the connection manager.
type fakeClient struct {
	d *events.Dispatcher

	mu          sync.Mutex
	connects    []string
	disconnects int
	pings       int
}

func newFakeClient() *fakeClient {
	return &fakeClient{d: events.New(events.WithLogger(logger.Noop()))}
}

func (c *fakeClient) Connect(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects = append(c.connects, target)
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	c.disconnects++
	c.mu.Unlock()
	c.d.Emit(events.Disconnected, stream.DisconnectedEvent{Code: stream.CloseNormal, Manual: true})
}

func (c *fakeClient) Ping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
}

func (c *fakeClient) Events() *events.Dispatcher { return c.d }

func (c *fakeClient) Attempts() int { return 0 }

type stubAck struct {
	err error
	ids []string
}

func (s *stubAck) Acknowledge(_ context.Context, id string) error {
	s.ids = append(s.ids, id)
	return s.err
}

func newTestModel(t *testing.T) (Model, *realtime.Store, *fakeClient, *stubAck) {
	t.Helper()

	client := newFakeClient()
	ack := &stubAck{}
	ledger := alerts.NewLedger(10,
		alerts.WithAcknowledger(ack),
		alerts.WithLogger(logger.Noop()),
		alerts.WithClock(func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }),
	)
	store := realtime.NewStore(client,
		realtime.WithLogger(logger.Noop()),
		realtime.WithLedger(ledger),
	)
	t.Cleanup(store.Close)

	store.Connect("motor-1")
	client.d.Emit(events.Connected, stream.ConnectedEvent{Target: "motor-1"})

	return NewModel(store, "motor-1", time.Second, 0), store, client, ack
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	m := NewModel(nil, "motor-1", 0, 0)

	assert.Equal(t, "motor-1", m.sensor)
	assert.Equal(t, time.Second, m.interval, "zero interval falls back to one second")
	assert.Equal(t, DefaultAckTimeout, m.ackTimeout)
	assert.Equal(t, 0, m.Selected())
	assert.NotNil(t, m.Init())
}

func TestHandleKeyMsg_Quit(t *testing.T) {
	for _, key := range []tea.KeyMsg{runeKey("q"), {Type: tea.KeyCtrlC}} {
		t.Run(key.String(), func(t *testing.T) {
			m, _, _, _ := newTestModel(t)

			handled, cmd := m.HandleKeyMsg(key)
			assert.True(t, handled)
			assert.NotNil(t, cmd)
			assert.True(t, m.quitting)
			assert.Empty(t, m.View())
		})
	}
}

func TestHandleKeyMsg_Help(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	handled, _ := m.HandleKeyMsg(runeKey("?"))
	assert.True(t, handled)
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	handled, _ = m.HandleKeyMsg(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, handled)
	assert.False(t, m.showHelp)

	handled, _ = m.HandleKeyMsg(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, handled, "esc does nothing without the overlay")
}

func TestHandleKeyMsg_Clear(t *testing.T) {
	m, store, _, _ := newTestModel(t)
	store.UpdateFeatures(realtime.FeatureUpdate{Values: map[string]float64{"rms_h": 0.5}})
	require.Equal(t, 1, store.FeatureCount())

	handled, _ := m.HandleKeyMsg(runeKey("c"))
	assert.True(t, handled)
	assert.Equal(t, 0, store.FeatureCount())
	notice, isErr := m.Notice()
	assert.Equal(t, "buffers cleared", notice)
	assert.False(t, isErr)
}

func TestHandleKeyMsg_Ping(t *testing.T) {
	m, _, client, _ := newTestModel(t)

	m.HandleKeyMsg(runeKey("p"))
	assert.Equal(t, 1, client.pings)
}

func TestHandleKeyMsg_DisconnectAndReconnect(t *testing.T) {
	m, store, client, _ := newTestModel(t)

	m.HandleKeyMsg(runeKey("d"))
	assert.Equal(t, 1, client.disconnects)
	assert.Equal(t, realtime.StatusDisconnected, store.ConnectionStatus())
	assert.Empty(t, store.Sensor())

	m.HandleKeyMsg(runeKey("r"))
	assert.Equal(t, []string{"motor-1", "motor-1"}, client.connects, "r reconnects to the original sensor")
	assert.Equal(t, "motor-1", store.Sensor())
	assert.Equal(t, realtime.StatusConnecting, store.ConnectionStatus())
}

func TestHandleKeyMsg_ReconnectWhileConnected(t *testing.T) {
	m, _, client, _ := newTestModel(t)

	m.HandleKeyMsg(runeKey("r"))
	assert.Equal(t, []string{"motor-1", "motor-1"}, client.connects)
}

func TestHandleKeyMsg_SelectFeature(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	last := len(series.FeatureChannels) - 1

	m.HandleKeyMsg(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, last, m.Selected(), "wraps backwards")

	m.HandleKeyMsg(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 0, m.Selected(), "wraps forwards")

	m.HandleKeyMsg(runeKey("l"))
	m.HandleKeyMsg(runeKey("l"))
	m.HandleKeyMsg(runeKey("h"))
	assert.Equal(t, 1, m.Selected())
}

func TestHandleKeyMsg_Unknown(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	handled, cmd := m.HandleKeyMsg(runeKey("z"))
	assert.False(t, handled)
	assert.Nil(t, cmd)
}

func TestAcknowledgeLatest_NoAlerts(t *testing.T) {
	m, _, _, ack := newTestModel(t)

	handled, cmd := m.HandleKeyMsg(runeKey("a"))
	assert.True(t, handled)
	assert.Nil(t, cmd)
	assert.Empty(t, ack.ids)

	notice, _ := m.Notice()
	assert.Equal(t, "no alerts to acknowledge", notice)
}

func TestAcknowledgeLatest(t *testing.T) {
	m, store, client, ack := newTestModel(t)
	client.d.Emit(events.Alert, []byte(`{"alert_id": 41, "severity": "warning", "message": "older"}`))
	client.d.Emit(events.Alert, []byte(`{"alert_id": 42, "severity": "critical", "message": "newest"}`))
	require.Len(t, store.Alerts(), 2)

	_, cmd := m.HandleKeyMsg(runeKey("a"))
	require.NotNil(t, cmd)

	msg := cmd()
	result, ok := msg.(ackResultMsg)
	require.True(t, ok)
	assert.Equal(t, "42", result.id)
	assert.NoError(t, result.err)
	assert.Equal(t, []string{"42"}, ack.ids)

	updated, _ := m.Update(msg)
	notice, isErr := updated.(Model).Notice()
	assert.Equal(t, "alert 42 acknowledged", notice)
	assert.False(t, isErr)

	remaining := store.Alerts()
	require.Len(t, remaining, 1)
	assert.Equal(t, "41", remaining[0].ID)
}

func TestAcknowledgeLatest_Failure(t *testing.T) {
	m, store, client, ack := newTestModel(t)
	ack.err = errors.New("connection refused")
	client.d.Emit(events.Alert, []byte(`{"alert_id": 7, "message": "rms_h high"}`))

	_, cmd := m.HandleKeyMsg(runeKey("a"))
	require.NotNil(t, cmd)

	updated, _ := m.Update(cmd())
	notice, isErr := updated.(Model).Notice()
	assert.True(t, isErr)
	assert.Contains(t, notice, "ack 7 failed")
	assert.Len(t, store.Alerts(), 1, "alert is kept when the backend refuses")
}

func TestUpdate_WindowSize(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 140, Height: 50})
	assert.Nil(t, cmd)
	assert.Equal(t, 140, updated.(Model).width)
	assert.Equal(t, 50, updated.(Model).height)
}

func TestUpdate_TickReschedules(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	_, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestErrorSummary(t *testing.T) {
	assert.Equal(t, "plain", errorSummary(errors.New("plain\nsecond line")))

	wrapped := alerts.NewLedger(1).Acknowledge(context.Background(), "x")
	assert.Equal(t, "Alert acknowledgement is not configured", errorSummary(wrapped))
}
