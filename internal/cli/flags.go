package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibesense/phmwatch/internal/config"
	"github.com/vibesense/phmwatch/internal/errors"
)

// minInterval bounds how fast the dashboard redraws.
const minInterval = 100 * time.Millisecond

// ServerFlags holds the flags that override the server section of the config.
type ServerFlags struct {
	Host   string
	Secure bool
}

// AddServerFlags registers --host and --secure on a command.
func AddServerFlags(cmd *cobra.Command, flags *ServerFlags) {
	cmd.Flags().StringVar(&flags.Host, "host", "", "backend host:port (overrides server.host)")
	cmd.Flags().BoolVar(&flags.Secure, "secure", false, "use wss:// and https:// (overrides server.secure)")
}

// Apply copies the flags that were set on cmd into cfg.
func (f ServerFlags) Apply(cmd *cobra.Command, cfg *config.Config) {
	if f.Host != "" {
		cfg.Server.Host = f.Host
	}
	if cmd.Flags().Changed("secure") {
		cfg.Server.Secure = f.Secure
	}
}

// WatchFlags holds the flags of the watch command.
type WatchFlags struct {
	ServerFlags
	Interval    string
	MetricsAddr string
	NATSURL     string
}

// AddWatchFlags registers the watch flags on a command.
func AddWatchFlags(cmd *cobra.Command, flags *WatchFlags) {
	AddServerFlags(cmd, &flags.ServerFlags)
	cmd.Flags().StringVar(&flags.Interval, "interval", "", "dashboard refresh interval (e.g., 500ms, 1s)")
	cmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g., :9102)")
	cmd.Flags().StringVar(&flags.NATSURL, "nats-url", "", "republish stream events to this NATS server")
}

// Apply copies the flags that were set on cmd into cfg.
func (f WatchFlags) Apply(cmd *cobra.Command, cfg *config.Config) error {
	f.ServerFlags.Apply(cmd, cfg)

	interval, err := ParseInterval(f.Interval)
	if err != nil {
		return err
	}
	if interval > 0 {
		cfg.Monitor.Interval = interval
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}
	if f.NATSURL != "" {
		cfg.NATS.URL = f.NATSURL
	}
	return nil
}

// ParseInterval parses a refresh interval string into a duration.
// Returns zero duration if the flag is empty.
func ParseInterval(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid interval", flag),
			"Try something like 1s, 500ms, or 2s.")
	}
	if duration < minInterval {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Interval %s is too short", duration),
			fmt.Sprintf("Use at least %s.", minInterval))
	}
	return duration, nil
}
