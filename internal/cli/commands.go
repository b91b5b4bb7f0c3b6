package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/vibesense/phmwatch/internal/errors"
)

// Command-specific flags
var (
	watchFlags         WatchFlags
	ackFlags           ServerFlags
	ackByFlag          string
	initForce          bool
	initNonInteractive bool
	initGlobal         bool
	initOutput         string
	initHostFlag       string
	initNATSFlag       string
)

// watchCmd streams features and alerts for one sensor
var watchCmd = &cobra.Command{
	Use:   "watch <sensorId>",
	Short: "Stream live features and alerts for a sensor",
	Long: `Open the realtime stream for a sensor and display it.

On a terminal this starts an interactive dashboard with one card per
feature channel and a list of recent alerts. When output is piped,
every stream event is printed as a single line instead.

The connection is retried with exponential backoff when it drops.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  a           Acknowledge latest alert
  c           Clear feature buffers
  p           Send ping
  r           Reconnect
  d           Disconnect
  left/right  Select feature
  ?           Show help

Examples:
  phmwatch watch motor-1
  phmwatch watch motor-1 --host 10.0.0.5:8081 --interval 500ms
  phmwatch watch motor-1 --metrics-addr :9102 --nats-url nats://localhost:4222
  phmwatch watch motor-1 | tee stream.log`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(cmd, args[0], watchFlags)
	},
}

// ackCmd acknowledges an alert through the backend API
var ackCmd = &cobra.Command{
	Use:   "ack <alertId>",
	Short: "Acknowledge an alert",
	Long: `Acknowledge an alert by id through the backend REST API.

Examples:
  phmwatch ack 42
  phmwatch ack 42 --by alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ackCommand(cmd, args[0], ackFlags, ackByFlag)
	},
}

// initCmd creates a new .phmwatch.yaml configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .phmwatch.yaml configuration",
	Long: `Initialize a new phmwatch configuration file.

Creates .phmwatch.yaml in the current directory (or the global config with
--global) and walks you through the backend connection settings.

Examples:
  phmwatch init
  phmwatch init --global
  phmwatch init --non-interactive --host 10.0.0.5:8081 --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(InitOptions{
			Host:           initHostFlag,
			NATSURL:        initNATSFlag,
			Output:         initOutput,
			Global:         initGlobal,
			Overwrite:      initForce,
			NonInteractive: initNonInteractive,
		})
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for phmwatch.

Examples:
  # Bash
  phmwatch completion bash > /etc/bash_completion.d/phmwatch

  # Zsh
  phmwatch completion zsh > "${fpath[1]}/_phmwatch"

  # Fish
  phmwatch completion fish > ~/.config/fish/completions/phmwatch.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// watch command flags
	AddWatchFlags(watchCmd, &watchFlags)

	// ack command flags
	AddServerFlags(ackCmd, &ackFlags)
	ackCmd.Flags().StringVar(&ackByFlag, "by", "", "name recorded as acknowledged_by (overrides alerts.acknowledged_by)")

	// init command flags
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "skip prompts and use flags or defaults")
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "write ~/.config/phmwatch/config.yaml")
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "", "write the config to this path")
	initCmd.Flags().StringVar(&initHostFlag, "host", "", "pre-specify backend host:port")
	initCmd.Flags().StringVar(&initNATSFlag, "nats-url", "", "pre-specify NATS server URL")
	initCmd.MarkFlagsMutuallyExclusive("global", "output")

	// Register all commands
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(ackCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}
