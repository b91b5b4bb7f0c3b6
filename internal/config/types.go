package config

import (
	"net/url"
	"strings"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .phmwatch.yaml configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`
	Buffer    BufferConfig    `yaml:"buffer" mapstructure:"buffer"`
	Alerts    AlertsConfig    `yaml:"alerts" mapstructure:"alerts"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	NATS      NATSConfig      `yaml:"nats" mapstructure:"nats"`
}

// ServerConfig locates the analysis backend.
type ServerConfig struct {
	// Host is host:port of the backend, without scheme.
	Host string `yaml:"host" mapstructure:"host"`

	// Secure selects wss:// and https:// instead of ws:// and http://.
	Secure bool `yaml:"secure" mapstructure:"secure"`

	// APIBase is the REST base URL. Empty derives it from Host and Secure.
	APIBase string `yaml:"api_base,omitempty" mapstructure:"api_base"`

	// HandshakeTimeout bounds the WebSocket opening handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`
}

// ReconnectConfig controls automatic reconnection after an unexpected close.
type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
}

// BufferConfig sizes the feature series.
type BufferConfig struct {
	// MaxPoints is the number of samples retained per channel.
	MaxPoints int `yaml:"max_points" mapstructure:"max_points"`

	// Window is the number of samples shown. Zero shows the whole buffer.
	Window int `yaml:"window" mapstructure:"window"`
}

// AlertsConfig controls the alert ledger and acknowledgement.
type AlertsConfig struct {
	Capacity       int           `yaml:"capacity" mapstructure:"capacity"`
	AcknowledgedBy string        `yaml:"acknowledged_by" mapstructure:"acknowledged_by"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// MonitorConfig controls the dashboard.
type MonitorConfig struct {
	// Interval is the dashboard refresh period.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"`
}

// NATSConfig controls event republishing.
type NATSConfig struct {
	// URL of the NATS server. Empty disables the bridge.
	URL string `yaml:"url,omitempty" mapstructure:"url"`

	// SubjectPrefix is the first token of every published subject.
	SubjectPrefix string `yaml:"subject_prefix" mapstructure:"subject_prefix"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Server: ServerConfig{
			Host:             "localhost:8081",
			HandshakeTimeout: 10 * time.Second,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 10,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		Buffer: BufferConfig{
			MaxPoints: 1000,
			Window:    1000,
		},
		Alerts: AlertsConfig{
			Capacity:       50,
			AcknowledgedBy: "user",
			Timeout:        10 * time.Second,
		},
		Monitor: MonitorConfig{
			Interval: time.Second,
		},
		NATS: NATSConfig{
			SubjectPrefix: "phm",
		},
	}
}

// APIBaseURL returns the REST base URL, derived from the host when not set.
func (s ServerConfig) APIBaseURL() string {
	if s.APIBase != "" {
		return strings.TrimSuffix(s.APIBase, "/")
	}
	scheme := "http"
	if s.Secure {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: strings.TrimSuffix(s.Host, "/")}
	return u.String()
}
