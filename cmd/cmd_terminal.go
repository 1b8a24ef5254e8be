package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"cosmterm/pkg/chat"
	"cosmterm/pkg/config"
	"cosmterm/pkg/logging"
	"cosmterm/pkg/models"
	"cosmterm/pkg/tui"
	"cosmterm/pkg/wallet"
	"cosmterm/pkg/watcher"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const logFileName = ".cosmterm.log"

// TerminalCmd returns the command for the interactive terminal.
func TerminalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terminal",
		Short: "Run the interactive terminal (default)",
		Long: `Run the interactive terminal.

The wallet key is read from the wallet key_file in the config or from the
COSMTERM_PRIVATE_KEY environment variable. With only wallet.address set the
terminal runs watch only. Logs go to ~/` + logFileName + ` unless the config
names another file.`,
		RunE: runTerminal,
	}
}

func runTerminal(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logCfg := cfg.Logging
	if logCfg.File == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to determine home directory: %w", err)
		}
		logCfg.File = filepath.Join(home, logFileName)
	}
	logger, closer, err := logging.NewLoggerFromConfig(logCfg)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = closer.Close() }()
	log := logging.ForComponent(logger, logging.ComponentTerminal)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	chain := cfg.ActiveChain()
	provider, err := wallet.LocalProviderFromConfig(cfg.Wallet, chain.Bech32Prefix)
	if err != nil {
		return fmt.Errorf("failed to load wallet key: %w", err)
	}

	self := cfg.Wallet.Address
	if self == "" {
		self = keyAddress(cmd, provider, chain, log)
	}

	book := chat.NewBook(lo.Map(cfg.Contacts, func(c config.ContactConfig, _ int) models.Contact {
		return models.Contact{Address: c.Address, Name: c.Name}
	}))
	var daemon *chat.DaemonClient
	if self != "" {
		daemon = chat.NewDaemonClient(cfg.Chat.DaemonURL, self, book, logger)
		if err := daemon.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("Chat daemon unavailable, running offline")
		}
		defer func() { _ = daemon.Close() }()
	}

	w := watcher.NewWatcher(chain, cfg.Wallet.Address, cfg.Global, logger)
	w.Start(ctx)
	defer w.Stop()

	log.Info().Str(logging.FieldChain, chain.Name).Str("config", path).Msg("Starting terminal")
	return tui.Start(ctx, tui.Options{
		Watcher:    w,
		Config:     cfg,
		ConfigPath: path,
		Provider:   provider,
		Book:       book,
		Daemon:     daemon,
		Logger:     logger,
		Version:    Version,
	})
}

// keyAddress reads the address of the local key, if there is one.
func keyAddress(cmd *cobra.Command, p wallet.Provider, chain config.ChainConfig, log zerolog.Logger) string {
	ctx := cmd.Context()
	if !p.Available(ctx) {
		return ""
	}
	if err := p.Enable(ctx, chain.ChainID); err != nil {
		log.Warn().Err(err).Msg("Failed to enable wallet")
		return ""
	}
	key, err := p.GetKey(ctx, chain.ChainID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read wallet key")
		return ""
	}
	return key.Address
}
