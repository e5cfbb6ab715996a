package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hacker-sp/RTOps-Management-Platform/cmd/rtops/internal"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "rtops",
	Short: "RTOps - Red Team Operations Record-Keeping Platform",
	Long: `RTOps keeps the operational record for red team engagements:
an ATT&CK technique catalog fed from STIX bundles, Navigator layers,
and reference spreadsheets; per-exercise findings; and versioned
kill chain plans.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig is called before any command runs to load configuration
func loadConfig(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	homeDir := flags.HomeDir
	if homeDir == "" {
		homeDir = os.Getenv("RTOPS_HOME")
	}
	if homeDir == "" {
		homeDir = config.DefaultHomeDir()
	}

	configFile := flags.ConfigFile
	if configFile == "" {
		configFile = config.DefaultConfigPath(homeDir)
	}

	// init, version, status, and help must work before config exists
	if cmd.Name() == "init" || cmd.Name() == "version" || cmd.Name() == "status" || cmd.Name() == "help" {
		return nil
	}

	// Missing config is not fatal; commands fall back to defaults
	if _, err := os.Stat(configFile); err != nil {
		if os.IsNotExist(err) && flags.IsVerbose() {
			cmd.PrintErrf("Config file not found at %s (run 'rtops init' to create)\n", configFile)
		}
	}

	// Point the default slog handler at the configured level and format.
	// Load failures are surfaced later by the command itself.
	if cfg, err := config.NewConfigLoader(config.NewValidator()).LoadWithDefaults(configFile); err == nil {
		internal.SetupLogging(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	}

	return nil
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exerciseCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(killchainCmd)
	rootCmd.AddCommand(findingCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(completionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("rtops v0.3.0")
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for rtops.

To load completions:

Bash:

  $ source <(rtops completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ rtops completion bash > /etc/bash_completion.d/rtops
  # macOS:
  $ rtops completion bash > $(brew --prefix)/etc/bash_completion.d/rtops

Zsh:

  $ rtops completion zsh > "${fpath[1]}/_rtops"

  # You will need to start a new shell for this setup to take effect.

Fish:

  $ rtops completion fish | source

  # To load completions for each session, execute once:
  $ rtops completion fish > ~/.config/fish/completions/rtops.fish

PowerShell:

  PS> rtops completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			_ = cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			_ = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			_ = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			_ = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}
