// Package cmd holds the cosmterm command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosmterm/pkg/config"

	"github.com/spf13/cobra"
)

const flagConfig = "config"

// Version is set at build time via ldflags in the main package.
var Version = "dev"

// RootCmd builds the command tree. Without a subcommand it runs the terminal.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cosmterm",
		Short: "Research terminal for Cosmos SDK chains",
		Long: `Research terminal for Cosmos SDK chains.

cosmterm connects a local wallet to a Cosmos SDK chain and shows balances,
staking positions, recent blocks and network health. It can also run as a
headless proxy that serves a static front end and relays LCD and RPC calls
with CORS headers.`,
		SilenceUsage: true,
		RunE:         runTerminal,
	}

	root.PersistentFlags().String(flagConfig, "", "Path to configuration file (default ~/"+config.ConfigFileName+")")

	root.AddCommand(ServeCmd())
	root.AddCommand(TerminalCmd())
	root.AddCommand(CheckCmd())
	root.AddCommand(VersionCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return RootCmd().Execute()
}

// loadConfig resolves the config path from the --config flag and loads it.
// A missing file yields the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	flagPath, _ := cmd.Flags().GetString(flagConfig)
	path, err := config.GetConfigPath(flagPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to determine config path: %w", err)
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if len(cfg.Chains) == 0 {
		return nil, path, fmt.Errorf("no chains found in configuration, create %s with 'chains'", path)
	}
	return cfg, path, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
