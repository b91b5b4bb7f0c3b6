package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vibesense/phmwatch/internal/alerts"
	phmerrors "github.com/vibesense/phmwatch/internal/errors"
	"github.com/vibesense/phmwatch/internal/events"
	"github.com/vibesense/phmwatch/internal/realtime"
	"github.com/vibesense/phmwatch/internal/series"
	"github.com/vibesense/phmwatch/internal/stream"
)

// EventLog renders stream events as one line each. It is the watch output
// when stdout is not a terminal.
//
// Example output:
//
//	● 10:00:01 connected to motor-1
//	· 10:00:02 rms_h=0.0123 rms_v=0.0098 kurtosis_h=3.0100 ...
//	▲ 10:00:03 CRITICAL rms_h above threshold rms_h=0.0500 > 0.0400 #42
//	○ 10:00:09 disconnected (code 1006) retry 1 in 1s
type EventLog struct {
	mu        sync.Mutex
	w         io.Writer
	now       func() time.Time
	d         *events.Dispatcher
	listeners map[string]events.ListenerID
}

// NewEventLog creates an event log writing to w.
func NewEventLog(w io.Writer) *EventLog {
	return &EventLog{
		w:         w,
		now:       time.Now,
		listeners: make(map[string]events.ListenerID),
	}
}

// SetClock overrides the timestamp source.
func (l *EventLog) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Attach subscribes the log to d. Call Detach to stop.
func (l *EventLog) Attach(d *events.Dispatcher) {
	l.Detach()

	handlers := map[string]events.Handler{
		events.Connected:       l.connected,
		events.Disconnected:    l.disconnected,
		events.Error:           l.failed,
		events.ReconnectFailed: l.reconnectFailed,
		events.FeatureUpdate:   l.featureUpdate,
		events.Alert:           l.alert,
		events.Pong:            func(any) { l.line(SymbolPending, ColorMuted, "pong") },
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.d = d
	for name, h := range handlers {
		l.listeners[name] = d.On(name, h)
	}
}

// Detach removes every handler installed by Attach.
func (l *EventLog) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.d == nil {
		return
	}
	for name, id := range l.listeners {
		l.d.Off(name, id)
	}
	l.listeners = make(map[string]events.ListenerID)
	l.d = nil
}

func (l *EventLog) connected(payload any) {
	target := ""
	if ev, ok := payload.(stream.ConnectedEvent); ok {
		target = ev.Target
	}
	l.line(SymbolComplete, ColorSuccess, "connected to "+target)
}

func (l *EventLog) disconnected(payload any) {
	ev, ok := payload.(stream.DisconnectedEvent)
	if !ok {
		l.line(SymbolPending, ColorWarning, "disconnected")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "disconnected (code %d)", ev.Code)
	if ev.Reason != "" {
		b.WriteString(": " + ev.Reason)
	}
	if ev.WillRetry {
		fmt.Fprintf(&b, " retry %d in %s", ev.Attempt, ev.Delay)
	}
	l.line(SymbolPending, ColorWarning, b.String())
}

func (l *EventLog) failed(payload any) {
	msg := "unknown error"
	if ev, ok := payload.(stream.ErrorEvent); ok && ev.Err != nil {
		msg = summary(ev.Err)
	}
	l.line(SymbolFail, ColorError, "error: "+msg)
}

func (l *EventLog) reconnectFailed(payload any) {
	msg := "gave up reconnecting"
	if ev, ok := payload.(stream.ReconnectFailedEvent); ok {
		msg = fmt.Sprintf("gave up on %s after %d attempts", ev.Target, ev.Attempts)
	}
	l.line(SymbolFail, ColorError, msg)
}

func (l *EventLog) featureUpdate(payload any) {
	u, err := realtime.ParseFeatureUpdate(payload)
	if err != nil {
		l.line(SymbolFail, ColorWarning, "bad feature update: "+summary(err))
		return
	}

	parts := make([]string, 0, len(series.FeatureChannels))
	for _, name := range series.FeatureChannels {
		v, ok := u.Values[name]
		if !ok {
			continue
		}
		parts = append(parts, name+"="+realtime.FormatValue(v, true))
	}
	if len(parts) == 0 {
		parts = append(parts, "no known features")
	}
	l.line("·", ColorInfo, strings.Join(parts, " "))
}

func (l *EventLog) alert(payload any) {
	a, err := realtime.ParseAlert(payload)
	if err != nil {
		l.line(SymbolFail, ColorWarning, "bad alert: "+summary(err))
		return
	}
	l.line(SymbolAlert, severityColor(a.Severity), FormatAlert(a))
}

// FormatAlert renders an alert as plain text.
func FormatAlert(a alerts.Alert) string {
	severity := strings.ToUpper(a.Severity)
	if severity == "" {
		severity = "ALERT"
	}

	var b strings.Builder
	b.WriteString(severity + " " + a.Message)
	if a.FeatureName != "" && a.CurrentValue != nil {
		fmt.Fprintf(&b, " %s=%s", a.FeatureName, realtime.FormatValue(*a.CurrentValue, true))
		if a.ThresholdValue != nil {
			b.WriteString(" > " + realtime.FormatValue(*a.ThresholdValue, true))
		}
	}
	if a.ID != "" {
		b.WriteString(" #" + a.ID)
	}
	return b.String()
}

func (l *EventLog) line(symbol string, color lipgloss.Color, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamp := lipgloss.NewStyle().Foreground(ColorMuted).Render(l.now().Format("15:04:05"))
	fmt.Fprintf(l.w, "%s %s %s\n", lipgloss.NewStyle().Foreground(color).Render(symbol), stamp, text)
}

func severityColor(severity string) lipgloss.Color {
	switch strings.ToLower(severity) {
	case alerts.SeverityCritical:
		return ColorError
	case alerts.SeverityWarning:
		return ColorWarning
	default:
		return ColorInfo
	}
}

// summary returns the one-line message of err.
func summary(err error) string {
	var phmErr *phmerrors.Error
	if stderrors.As(err, &phmErr) {
		return phmErr.Message
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
