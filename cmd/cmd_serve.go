package cmd

import (
	"fmt"

	"cosmterm/pkg/logging"
	"cosmterm/pkg/server"
	"cosmterm/pkg/watcher"

	"github.com/spf13/cobra"
)

const (
	flagPort      = "port"
	flagStaticDir = "static-dir"
	flagLCDHost   = "lcd-host"
	flagRPCHost   = "rpc-host"
	flagNoWatch   = "no-watch"
)

// ServeCmd returns the command for the headless proxy server.
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the static file and CORS proxy server",
		Long: `Run the headless proxy server.

Static files are served from the static directory. /api/lcd/* and /api/rpc/*
are relayed to the LCD and RPC upstreams with CORS headers added. Unless
--no-watch is given, the chain is also polled and exposed on /api/status and
the /ws event stream.

Settings are read from the config file, then the environment
(COSMTERM_PORT, COSMTERM_LCD_HOST, COSMTERM_RPC_HOST, COSMTERM_STATIC_DIR,
COSMTERM_ALLOWED_ORIGINS), then flags.

Example:
  cosmterm serve --port 8080 --static-dir ./web
`,
		RunE: runServe,
	}

	cmd.Flags().Int(flagPort, 0, "Port to listen on")
	cmd.Flags().String(flagStaticDir, "", "Directory of static files")
	cmd.Flags().String(flagLCDHost, "", "LCD upstream base URL (default: first LCD URL of the chain)")
	cmd.Flags().String(flagRPCHost, "", "RPC upstream base URL (default: first RPC URL of the chain)")
	cmd.Flags().Bool(flagNoWatch, false, "Do not poll the chain")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := logging.NewLoggerFromConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = closer.Close() }()

	p := &cfg.Proxy
	if err := p.ApplyEnv(); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed(flagPort) {
		p.Port, _ = flags.GetInt(flagPort)
	}
	if flags.Changed(flagStaticDir) {
		p.StaticDir, _ = flags.GetString(flagStaticDir)
	}
	if flags.Changed(flagLCDHost) {
		p.LCDHost, _ = flags.GetString(flagLCDHost)
	}
	if flags.Changed(flagRPCHost) {
		p.RPCHost, _ = flags.GetString(flagRPCHost)
	}

	chain := cfg.ActiveChain()
	if err := p.ResolveUpstreams(chain); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	var w *watcher.Watcher
	if noWatch, _ := flags.GetBool(flagNoWatch); !noWatch {
		w = watcher.NewWatcher(chain, cfg.Wallet.Address, cfg.Global, logger)
		w.Start(ctx)
		defer w.Stop()
	}

	srv, err := server.NewServer(*p, w, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info().Msg("Proxy server stopped")
	return nil
}
