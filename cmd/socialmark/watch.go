package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/socialmark/internal/capture"
	"github.com/nao1215/socialmark/internal/config"
	"github.com/nao1215/socialmark/internal/proxy"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Observe traffic and record shares until interrupted",
		Long: `Watch starts the event sources and records every detected share.

Event sources:
- Capture server: accepts JSON events on POST /v1/events
- Forward proxy: observes plain-HTTP requests passing through it. HTTPS
  (CONNECT) traffic is tunneled without inspection, so shares to the
  built-in https:// services are only seen through the capture server.

Both can run at the same time. Press Ctrl+C to stop; in-flight shares are
finished before exit.

Examples:
  # Capture server on the default address
  socialmark watch

  # Also run the forward proxy, dialing upstream through SOCKS5
  socialmark watch --proxy 127.0.0.1:8080 --upstream-socks5 127.0.0.1:1080

  # Record everything observed for later replay
  socialmark watch --record events.jsonl.gz`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddr,
		"Capture server address (empty disables it)")
	cmd.Flags().StringP("proxy", "p", "",
		"Forward proxy address for plain-HTTP traffic (empty disables it)")
	cmd.Flags().String("upstream-socks5", "",
		"Dial proxied requests through this SOCKS5 server")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of shares processed at once")
	cmd.Flags().Bool("serialize-writes", true,
		"Serialize annotation updates per URL")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum request body size in bytes")
	cmd.Flags().Bool("dump-requests", false,
		"Log decoded request bodies at debug level (secrets are redacted)")
	cmd.Flags().String("record", "",
		"Append observed events to this JSON lines file (.gz to compress)")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildWatchConfig(cmd)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg)

	// Set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	runErr := serve(ctx, cfg, e)

	closeErr := e.Close()
	e.printStats(cmd.OutOrStdout())

	if runErr != nil {
		return runErr
	}
	return closeErr
}

// serve runs the configured event sources until ctx is cancelled or one
// of them fails.
func serve(ctx context.Context, cfg *config.Config, e *engine) error {
	g, ctx := errgroup.WithContext(ctx)

	if cfg.ListenAddr != "" {
		srv := capture.NewServer(e.hub,
			capture.WithLogger(e.logger),
			capture.WithMaxBodySize(cfg.MaxBodySize),
		)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.ListenAddr)
		})
	}

	if cfg.ProxyAddr != "" {
		opts := []proxy.Option{
			proxy.WithLogger(e.logger),
			proxy.WithMaxBodySize(cfg.MaxBodySize),
		}
		if cfg.UpstreamSOCKS5 != "" {
			dialer, err := proxy.NewSOCKS5Dialer(cfg.UpstreamSOCKS5)
			if err != nil {
				return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			opts = append(opts, proxy.WithDialer(dialer))
		}
		p := proxy.New(e.hub, opts...)
		g.Go(func() error {
			return p.ListenAndServe(ctx, cfg.ProxyAddr)
		})
	}

	return g.Wait()
}

// buildWatchConfig layers the watch flags over the loaded configuration.
func buildWatchConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	strs := map[string]*string{
		"listen":          &cfg.ListenAddr,
		"proxy":           &cfg.ProxyAddr,
		"upstream-socks5": &cfg.UpstreamSOCKS5,
		"record":          &cfg.RecordFile,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("serialize-writes") {
		if cfg.SerializeWrites, err = flags.GetBool("serialize-writes"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("dump-requests") {
		if cfg.DumpRequests, err = flags.GetBool("dump-requests"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
