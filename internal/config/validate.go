package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/vibesense/phmwatch/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	// Check version
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but phmwatch only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade phmwatch or lower the version field.")
	}

	if err := validateServer(cfg.Server); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'server' section in your .phmwatch.yaml.")
	}

	if err := validateReconnect(cfg.Reconnect); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'reconnect' section in your .phmwatch.yaml.")
	}

	if err := validateBuffer(cfg.Buffer); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'buffer' section in your .phmwatch.yaml.")
	}

	if err := validateAlerts(cfg.Alerts); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'alerts' section in your .phmwatch.yaml.")
	}

	if cfg.Monitor.Interval < 0 {
		return errors.New(errors.ErrConfig,
			"monitor.interval can't be negative",
			"Try something like '1s' or '500ms'.")
	}

	if err := validateMetrics(cfg.Metrics); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'metrics' section in your .phmwatch.yaml.")
	}

	if err := validateNATS(cfg.NATS); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'nats' section in your .phmwatch.yaml.")
	}

	return nil
}

// validateServer checks the backend location.
func validateServer(s ServerConfig) error {
	host := strings.TrimSpace(s.Host)
	if host == "" {
		return fmt.Errorf("server.host is empty - set it to the backend's host:port, like 'localhost:8081'")
	}
	if strings.Contains(host, "://") {
		return fmt.Errorf("server.host '%s' includes a scheme - use just host:port and set server.secure for TLS", host)
	}
	if strings.ContainsAny(host, " /") {
		return fmt.Errorf("server.host '%s' should be host:port with no path", host)
	}

	if s.APIBase != "" {
		u, err := url.Parse(s.APIBase)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("server.api_base '%s' isn't a valid http(s) URL", s.APIBase)
		}
	}

	if s.HandshakeTimeout < 0 {
		return fmt.Errorf("server.handshake_timeout can't be negative")
	}
	return nil
}

// validateReconnect checks the backoff policy.
func validateReconnect(r ReconnectConfig) error {
	if r.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts can't be negative (got %d)", r.MaxAttempts)
	}
	if r.BaseDelay < 0 {
		return fmt.Errorf("reconnect.base_delay can't be negative")
	}
	if r.MaxDelay < 0 {
		return fmt.Errorf("reconnect.max_delay can't be negative")
	}
	if r.BaseDelay > 0 && r.MaxDelay > 0 && r.BaseDelay > r.MaxDelay {
		return fmt.Errorf("reconnect.base_delay (%v) is longer than reconnect.max_delay (%v) - should be the other way around", r.BaseDelay, r.MaxDelay)
	}
	if r.MaxDelay > time.Hour {
		return fmt.Errorf("reconnect.max_delay (%v) is over an hour - the dashboard would look dead", r.MaxDelay)
	}
	return nil
}

// validateBuffer checks series sizing.
func validateBuffer(b BufferConfig) error {
	if b.MaxPoints < 0 {
		return fmt.Errorf("buffer.max_points can't be negative (got %d)", b.MaxPoints)
	}
	if b.Window < 0 {
		return fmt.Errorf("buffer.window can't be negative (got %d)", b.Window)
	}
	if b.MaxPoints > 0 && b.Window > b.MaxPoints {
		return fmt.Errorf("buffer.window (%d) is larger than buffer.max_points (%d) - the window can't show more than the buffer holds", b.Window, b.MaxPoints)
	}
	return nil
}

// validateAlerts checks the ledger settings.
func validateAlerts(a AlertsConfig) error {
	if a.Capacity < 0 {
		return fmt.Errorf("alerts.capacity can't be negative (got %d)", a.Capacity)
	}
	if a.Timeout < 0 {
		return fmt.Errorf("alerts.timeout can't be negative")
	}
	return nil
}

// validateMetrics checks the listen address.
func validateMetrics(m MetricsConfig) error {
	if m.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Addr); err != nil {
		return fmt.Errorf("metrics.addr '%s' isn't a listen address - try ':9090' or '127.0.0.1:9090'", m.Addr)
	}
	return nil
}

// validateNATS checks the bridge settings.
func validateNATS(n NATSConfig) error {
	if n.URL != "" {
		u, err := url.Parse(n.URL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("nats.url '%s' doesn't look like a NATS URL - try 'nats://localhost:4222'", n.URL)
		}
	}
	if strings.ContainsAny(n.SubjectPrefix, " *>") {
		return fmt.Errorf("nats.subject_prefix '%s' can't contain spaces or wildcards", n.SubjectPrefix)
	}
	return nil
}
