// Package monitor implements the live terminal dashboard for one sensor.
//
// The dashboard renders straight from a realtime.Store: the store is updated
// by the stream goroutines and the model redraws on a fixed tick, so the view
// never holds its own copy of the data.
//
// # Layout
//
//	header   - sensor, connection status, reconnect attempt, buffer and window
//	cards    - one card per feature channel with the latest value and a
//	           sparkline over the current window
//	detail   - a braille graph of the selected feature
//	alerts   - the alert ledger, newest first
//	footer   - status line and key hints
//
// Channels missing from a sample are stored as NaN and skipped by the graphs.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	a           - Acknowledge the latest alert
//	c           - Clear buffers and alerts
//	p           - Ping the server
//	r           - Reconnect
//	d           - Disconnect
//	←/→, h/l    - Select feature
//	?           - Toggle help overlay
package monitor
