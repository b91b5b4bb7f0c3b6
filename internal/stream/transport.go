package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	phmerrors "github.com/vibesense/phmwatch/internal/errors"
)

// WebSocket close codes used when the transport goes away without a close frame.
const (
	CloseNormal   = websocket.CloseNormalClosure
	CloseAbnormal = websocket.CloseAbnormalClosure
)

// Conn is one open streaming transport.
type Conn interface {
	// ReadMessage blocks until a frame arrives. A *CloseError reports an orderly close.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transports to a target (a sensor id).
type Dialer interface {
	Dial(ctx context.Context, target string) (Conn, error)
}

// CloseError carries the close code and reason sent by the peer.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("connection closed (code %d)", e.Code)
	}
	return fmt.Sprintf("connection closed (code %d): %s", e.Code, e.Reason)
}

// WebSocketDialer connects to ws(s)://<Host>/ws/realtime/<sensorId>.
type WebSocketDialer struct {
	Host             string
	Secure           bool
	HandshakeTimeout time.Duration
	Header           http.Header
}

// URL returns the stream endpoint for a sensor.
func (d *WebSocketDialer) URL(sensorID string) string {
	scheme := "ws"
	if d.Secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   strings.TrimSuffix(d.Host, "/"),
		Path:   "/ws/realtime/" + sensorID,
	}
	return u.String()
}

// Dial performs the WebSocket handshake.
func (d *WebSocketDialer) Dial(ctx context.Context, target string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	endpoint := d.URL(target)
	c, resp, err := dialer.DialContext(ctx, endpoint, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, phmerrors.WrapWithCode(err, phmerrors.ErrTransport,
			fmt.Sprintf("Cannot open stream %s", endpoint),
			"Check the server address and that the backend is running")
	}
	return &wsConn{conn: c}, nil
}

// wsConn adapts a gorilla connection to Conn.
type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
		}
		return nil, err
	}
	return data, nil
}

func (w *wsConn) WriteMessage(data []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame (best effort) and releases the socket.
func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}
