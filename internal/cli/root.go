package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg   *Config
	admin *AdminClient
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	loaded, loadErr := LoadConfig()
	if loadErr != nil {
		loaded = &Config{}
	}
	cfg = loaded

	rootCmd := &cobra.Command{
		Use:   "lobbyctl",
		Short: "CLI tool for the lobbyd game lobby server",
		Long: `lobbyctl inspects a running lobbyd through its admin HTTP API and can act as
a host or player over the lobby protocol (TCP or websocket).

Admin commands use --server; host and join use --addr, which accepts
host:port for TCP or a ws:// URL for the websocket transport.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			admin = NewAdminClient(cfg.ServerURL, cfg.AdminToken, cfg.Timeout)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Admin API URL (env: LOBBYCTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.AdminToken, "token", cfg.AdminToken, "Admin API token (env: LOBBYCTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.LobbyAddr, "addr", cfg.LobbyAddr, "Lobby address, host:port or ws:// URL (env: LOBBYCTL_ADDR)")
	rootCmd.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout (env: LOBBYCTL_TIMEOUT)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")

	// Add subcommands
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRoomsCmd())
	rootCmd.AddCommand(newMembersCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newHostCmd())
	rootCmd.AddCommand(newJoinCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func output(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout())
}
