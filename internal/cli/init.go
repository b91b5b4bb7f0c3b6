package cli

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/vibesense/phmwatch/internal/config"
	"github.com/vibesense/phmwatch/internal/errors"
	"github.com/vibesense/phmwatch/internal/ui"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Host           string // Pre-specified backend host:port
	NATSURL        string // Pre-specified NATS server URL
	Output         string // Explicit destination path
	Global         bool   // Write the global config instead of ./.phmwatch.yaml
	Overwrite      bool   // Overwrite existing config without asking
	NonInteractive bool   // Skip prompts, use defaults
	Out            io.Writer
}

// initAnswers are the values collected from prompts or flags.
type initAnswers struct {
	Host           string
	Secure         bool
	AcknowledgedBy string
	NATSURL        string
}

// Init creates a new phmwatch configuration file.
func Init(opts InitOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	configPath, err := initPath(opts)
	if err != nil {
		return err
	}

	overwrite := opts.Overwrite
	if _, err := os.Stat(configPath); err == nil && !overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", configPath),
				"Use --force to overwrite")
		}

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", configPath)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	defaults := config.DefaultConfig()
	answers := initAnswers{
		Host:           opts.Host,
		AcknowledgedBy: defaults.Alerts.AcknowledgedBy,
		NATSURL:        opts.NATSURL,
	}
	if answers.Host == "" {
		answers.Host = defaults.Server.Host
	}

	if !opts.NonInteractive {
		if err := promptInit(&answers); err != nil {
			return err
		}
	}
	if err := validateHost(answers.Host); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' isn't a usable backend host", answers.Host),
			"Use host:port without a scheme, e.g. localhost:8081")
	}

	cfg := buildInitConfig(answers)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Save(configPath, cfg, overwrite); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Created %s\n\n", ui.SymbolSuccess, configPath)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  phmwatch watch <sensorId>  - Stream features and alerts")
	fmt.Fprintln(out, "  phmwatch ack <alertId>     - Acknowledge an alert")

	return nil
}

// initPath picks the destination: --output, --global, or the current directory.
func initPath(opts InitOptions) (string, error) {
	switch {
	case opts.Output != "":
		return opts.Output, nil
	case opts.Global:
		return config.GlobalPath()
	default:
		return filepath.Join(".", config.ConfigFileName), nil
	}
}

func promptInit(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend host").
				Description("host:port of the analysis server, without scheme").
				Placeholder("localhost:8081").
				Value(&a.Host).
				Validate(validateHost),
			huh.NewConfirm().
				Title("Use TLS (wss:// and https://)?").
				Value(&a.Secure),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Acknowledge alerts as").
				Description("Recorded as acknowledged_by on the server").
				Placeholder("user").
				Value(&a.AcknowledgedBy).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a name is required")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("NATS server (optional)").
				Description("Stream events are republished here while watching").
				Placeholder("nats://localhost:4222 (leave empty to skip)").
				Value(&a.NATSURL),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive flag")
	}
	return nil
}

// validateHost requires host:port with no scheme or path.
func validateHost(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("backend host is required")
	}
	if strings.Contains(s, "://") || strings.Contains(s, "/") {
		return fmt.Errorf("leave out the scheme and path")
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("expected host:port")
	}
	return nil
}

func buildInitConfig(a initAnswers) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Host = strings.TrimSpace(a.Host)
	cfg.Server.Secure = a.Secure
	if who := strings.TrimSpace(a.AcknowledgedBy); who != "" {
		cfg.Alerts.AcknowledgedBy = who
	}
	cfg.NATS.URL = strings.TrimSpace(a.NATSURL)
	return cfg
}

// initCommand is the implementation called by the cobra command.
func initCommand(opts InitOptions) error {
	return Init(opts)
}
