package stream

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/vibesense/phmwatch/internal/events"
)

// ConnectedEvent is the payload of events.Connected.
type ConnectedEvent struct {
	Target string
	Time   time.Time
}

// DisconnectedEvent is the payload of events.Disconnected.
type DisconnectedEvent struct {
	Code   int
	Reason string
	// Manual is true when the caller asked for the disconnect.
	Manual bool
	// WillRetry is true when a reconnect has been scheduled.
	WillRetry bool
	Attempt   int
	Delay     time.Duration
}

// ErrorEvent is the payload of events.Error.
type ErrorEvent struct {
	Target string
	Err    error
}

// ReconnectFailedEvent is the payload of events.ReconnectFailed.
type ReconnectFailedEvent struct {
	Target   string
	Attempts int
}

// envelope is the optional tagging every backend frame may carry.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// decodeFrame classifies an inbound frame. Tagged JSON objects are emitted
// under their tag with the "data" member (or the whole object when there is
// none); any other valid JSON goes out as events.Data; everything else is
// events.Raw with the original bytes.
func decodeFrame(frame []byte) (name string, payload any) {
	if !json.Valid(frame) {
		return events.Raw, append([]byte(nil), frame...)
	}

	whole := json.RawMessage(append([]byte(nil), frame...))

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		return events.Data, whole
	}

	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return env.Type, whole
	}
	return env.Type, env.Data
}
