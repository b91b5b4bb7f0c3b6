package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vibesense/phmwatch/internal/alerts"
	"github.com/vibesense/phmwatch/internal/bridge"
	"github.com/vibesense/phmwatch/internal/config"
	"github.com/vibesense/phmwatch/internal/errors"
	"github.com/vibesense/phmwatch/internal/events"
	"github.com/vibesense/phmwatch/internal/logger"
	"github.com/vibesense/phmwatch/internal/monitor"
	"github.com/vibesense/phmwatch/internal/realtime"
	"github.com/vibesense/phmwatch/internal/stream"
	"github.com/vibesense/phmwatch/internal/telemetry"
	"github.com/vibesense/phmwatch/internal/ui"
	"golang.org/x/term"
)

// debugLogFile receives log output while the dashboard owns the terminal.
const debugLogFile = "phmwatch-debug.log"

// watchSession is everything one watch invocation wires together.
type watchSession struct {
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	manager  *stream.Manager
	ledger   *alerts.Ledger
	store    *realtime.Store
	bridge   *bridge.Bridge
	nc       *nats.Conn
}

// newWatchSession builds the connection, store and optional NATS bridge
// from cfg. Nothing connects until Store.Connect is called.
func newWatchSession(cfg *config.Config, dialer stream.Dialer) (*watchSession, error) {
	s := &watchSession{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
	}
	s.metrics = telemetry.New(s.registry)

	d := events.New(
		events.WithLogger(logger.NewEnvLogger("[events]")),
		events.WithPanicHook(func(name string, _ any) { s.metrics.HandlerPanic(name) }),
	)

	s.manager = stream.NewManager(dialer, d,
		stream.WithPolicy(stream.Policy{
			MaxAttempts: cfg.Reconnect.MaxAttempts,
			BaseDelay:   cfg.Reconnect.BaseDelay,
			MaxDelay:    cfg.Reconnect.MaxDelay,
		}),
		stream.WithLogger(logger.NewEnvLogger("[stream]")),
		stream.WithMetrics(s.metrics),
	)

	s.ledger = alerts.NewLedger(cfg.Alerts.Capacity,
		alerts.WithAcknowledger(alerts.NewHTTPAcknowledger(
			cfg.Server.APIBaseURL(), cfg.Alerts.AcknowledgedBy, cfg.Alerts.Timeout)),
		alerts.WithLogger(logger.NewEnvLogger("[alerts]")),
		alerts.WithMetrics(s.metrics),
	)

	s.store = realtime.NewStore(s.manager,
		realtime.WithBufferSize(cfg.Buffer.MaxPoints),
		realtime.WithWindow(cfg.Buffer.Window),
		realtime.WithLedger(s.ledger),
		realtime.WithLogger(logger.NewEnvLogger("[realtime]")),
		realtime.WithMetrics(s.metrics),
	)

	if cfg.NATS.URL != "" {
		nc, err := bridge.Dial(cfg.NATS.URL)
		if err != nil {
			s.store.Close()
			return nil, err
		}
		s.nc = nc
		s.bridge = bridge.New(nc, d, s.manager.Target,
			bridge.WithPrefix(cfg.NATS.SubjectPrefix),
			bridge.WithLogger(logger.NewEnvLogger("[bridge]")),
		)
	}

	return s, nil
}

// Close disconnects and releases every resource. Safe to call twice.
func (s *watchSession) Close() {
	s.store.Disconnect()
	s.store.Close()
	if s.bridge != nil {
		published, failed := s.bridge.Stats()
		log.Printf("[bridge] published %d events, %d failed", published, failed)
		s.bridge.Close()
		s.bridge = nil
	}
	if s.nc != nil {
		s.nc.Close()
		s.nc = nil
	}
}

// loadWatchConfig resolves the config file, applies flag overrides and
// validates the result.
func loadWatchConfig(cmd *cobra.Command, flags WatchFlags) (*config.Config, error) {
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := flags.Apply(cmd, cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func watchCommand(cmd *cobra.Command, sensorID string, flags WatchFlags) error {
	cfg, err := loadWatchConfig(cmd, flags)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialer := &stream.WebSocketDialer{
		Host:             cfg.Server.Host,
		Secure:           cfg.Server.Secure,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
	}
	session, err := newWatchSession(cfg, dialer)
	if err != nil {
		return err
	}
	defer session.Close()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := telemetry.Serve(ctx, cfg.Metrics.Addr, session.registry); err != nil {
				log.Printf("[telemetry] metrics endpoint stopped: %v", err)
			}
		}()
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return runDashboard(ctx, session, sensorID)
	}
	return runEventLog(ctx, session, sensorID, os.Stdout)
}

// runDashboard hands the terminal to the bubbletea dashboard until the user
// quits or ctx is cancelled.
func runDashboard(ctx context.Context, s *watchSession, sensorID string) error {
	restore := redirectLog()
	defer restore()

	s.store.Connect(sensorID)

	model := monitor.NewModel(s.store, sensorID, s.cfg.Monitor.Interval, s.cfg.Alerts.Timeout)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Dashboard crashed",
			"Try piping the output (phmwatch watch "+sensorID+" | cat) for plain event lines")
	}
	return nil
}

// runEventLog prints one line per stream event until ctx is cancelled.
func runEventLog(ctx context.Context, s *watchSession, sensorID string, w io.Writer) error {
	eventLog := ui.NewEventLog(w)
	eventLog.Attach(s.manager.Events())
	defer eventLog.Detach()

	fmt.Fprintf(w, "%s watching %s via %s\n", ui.SymbolProgress, sensorID, s.cfg.Server.Host)
	s.store.Connect(sensorID)

	<-ctx.Done()
	return nil
}

// redirectLog keeps log output off the alt screen. With debug enabled it goes
// to debugLogFile, otherwise it is discarded.
func redirectLog() func() {
	prev := log.Writer()
	restore := func() { log.SetOutput(prev) }

	if os.Getenv(logger.DebugEnv) != "" {
		f, err := tea.LogToFile(debugLogFile, "phmwatch")
		if err == nil {
			return func() {
				restore()
				f.Close()
			}
		}
	}
	log.SetOutput(io.Discard)
	return restore
}
