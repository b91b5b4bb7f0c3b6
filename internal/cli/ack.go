package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vibesense/phmwatch/internal/alerts"
	"github.com/vibesense/phmwatch/internal/config"
	"github.com/vibesense/phmwatch/internal/ui"
)

// AckOptions holds options for acknowledging a single alert.
type AckOptions struct {
	AlertID        string
	BaseURL        string
	AcknowledgedBy string
	Config         *config.Config
}

// Ack acknowledges one alert through the backend and reports progress on w.
func Ack(ctx context.Context, w io.Writer, opts AckOptions) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	base := opts.BaseURL
	if base == "" {
		base = cfg.Server.APIBaseURL()
	}
	who := opts.AcknowledgedBy
	if who == "" {
		who = cfg.Alerts.AcknowledgedBy
	}

	acker := alerts.NewHTTPAcknowledger(base, who, cfg.Alerts.Timeout)

	spinner := ui.NewSpinner(w, fmt.Sprintf("Acknowledging alert %s", opts.AlertID))
	spinner.Start()
	err := acker.Acknowledge(ctx, opts.AlertID)
	spinner.Done(err)
	return err
}

func ackCommand(cmd *cobra.Command, alertID string, flags ServerFlags, by string) error {
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}
	flags.Apply(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return Ack(ctx, os.Stdout, AckOptions{
		AlertID:        alertID,
		AcknowledgedBy: by,
		Config:         cfg,
	})
}
