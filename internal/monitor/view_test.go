package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vibesense/phmwatch/internal/alerts"
	"github.com/vibesense/phmwatch/internal/events"
	"github.com/vibesense/phmwatch/internal/realtime"
	"github.com/vibesense/phmwatch/internal/stream"
)

func TestView_EmptyDashboard(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	out := m.View()
	assert.Contains(t, out, "phmwatch")
	assert.Contains(t, out, "sensor motor-1")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "waiting for data")
	assert.Contains(t, out, "no samples in window")
	assert.Contains(t, out, "no alerts")
	assert.Contains(t, out, "--", "features without a value render as --")
}

func TestView_FeaturesAndAlerts(t *testing.T) {
	m, store, client, _ := newTestModel(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.UpdateFeatures(realtime.FeatureUpdate{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Values: map[string]float64{
				"rms_h":      0.01 * float64(i+1),
				"kurtosis_v": 3.25,
			},
		})
	}
	client.d.Emit(events.Alert, []byte(`{
		"alert_id": 9,
		"severity": "critical",
		"message": "rms_h above threshold",
		"feature_name": "rms_h",
		"current_value": 0.05,
		"threshold_value": 0.04
	}`))

	out := m.View()
	assert.Contains(t, out, "rms_h")
	assert.Contains(t, out, "0.0500")
	assert.Contains(t, out, "3.2500")
	assert.Contains(t, out, "5 samples")
	assert.Contains(t, out, "Alerts")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "rms_h above threshold")
	assert.Contains(t, out, "rms_h=0.0500 > 0.0400")
	assert.Contains(t, out, "#9")
	assert.NotContains(t, out, "no samples in window")
}

func TestView_FailedStatus(t *testing.T) {
	m, _, client, _ := newTestModel(t)
	client.d.Emit(events.ReconnectFailed, stream.ReconnectFailedEvent{Target: "motor-1", Attempts: 10})

	out := m.View()
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "gave up reconnecting")
}

func TestView_Notice(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	m.setNotice("ping sent", false)

	assert.Contains(t, m.View(), "ping sent")
}

func TestRenderAlerts_Truncates(t *testing.T) {
	m, _, client, _ := newTestModel(t)
	for i := 0; i < maxAlertLines+2; i++ {
		client.d.Emit(events.Alert, []byte(`{"message": "spike"}`))
	}

	out := m.renderAlerts()
	assert.Equal(t, maxAlertLines, strings.Count(out, "spike"))
	assert.Contains(t, out, "... 2 more")
}

func TestFormatAlert(t *testing.T) {
	current := 1.5
	a := alerts.Alert{ID: "abc", Message: "no severity", FeatureName: "peak_v", CurrentValue: &current}

	out := formatAlert(a)
	assert.Contains(t, out, "ALERT")
	assert.Contains(t, out, "peak_v=1.5000")
	assert.NotContains(t, out, ">", "no threshold shown when absent")
	assert.Contains(t, out, "#abc")
}

func TestCalculateCardWidth(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{0, 28},
		{60, 58},
		{100, 26},
		{160, 28},
	}

	for _, tt := range tests {
		m := Model{width: tt.width}
		assert.Equal(t, tt.want, m.calculateCardWidth(), "width %d", tt.width)
	}
}
