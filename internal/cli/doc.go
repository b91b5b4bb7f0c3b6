// Package cli implements the phmwatch command-line interface.
//
// Each Cobra command parses its flags and delegates to a plain function
// (watchCommand, Ack, Init) that does the work, so the logic can be
// exercised without going through Cobra.
//
// # Command Structure
//
//	phmwatch watch <sensorId>  - Stream features and alerts for a sensor
//	phmwatch ack <alertId>     - Acknowledge an alert
//	phmwatch init              - Create .phmwatch.yaml config
//	phmwatch version           - Print build information
//	phmwatch completion        - Generate shell completion
//
// # Watch Wiring
//
// watch loads the config, applies flag overrides and builds a watchSession:
// a stream.Manager dialing the backend WebSocket, an alerts.Ledger with the
// HTTP acknowledger, and a realtime.Store subscribed to the manager's
// dispatcher. When nats.url is set a bridge.Bridge republishes events, and
// metrics.addr exposes the telemetry registry over HTTP.
//
// On a terminal the bubbletea dashboard from internal/monitor takes over the
// screen. Otherwise ui.EventLog prints one line per event until interrupted.
//
// # Flag Handling
//
// Global flags (--config, --verbose, --no-color) are defined on the root
// command. ServerFlags and WatchFlags carry the per-command overrides and
// only replace config values for flags that were actually set.
package cli
