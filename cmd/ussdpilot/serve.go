package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ngabopay/ussdpilot/internal/cli"
	httpAdapter "github.com/ngabopay/ussdpilot/pkg/adapters/http"
	"github.com/ngabopay/ussdpilot/pkg/adapters/memory"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/spf13/cobra"
)

// Feed modes for serve.
const (
	feedPoll = "poll"
	feedPush = "push"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine behind the HTTP API",
	Long: `Starts the engine for the configured device and exposes it over HTTP:
dialing, engine status, stored results, a live event stream (SSE) and
Prometheus metrics.

With --feed poll (default) screens are read by polling uiautomator over adb.
With --feed push an on-device agent posts element trees to /v1/snapshots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if !cmd.Flags().Changed("addr") {
			addr = cfg.HTTP.Addr
		}
		feedMode, _ := cmd.Flags().GetString("feed")

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		host := cli.ADBHost(cfg.Device, logger)
		var push *memory.Feed
		switch feedMode {
		case feedPoll:
		case feedPush:
			push = memory.NewFeed(memory.DefaultFeedBuffer)
			host.Feed = push
		default:
			return fmt.Errorf("unknown feed %q (supported: %s, %s)", feedMode, feedPoll, feedPush)
		}

		streams := httpAdapter.NewStreamManager()
		app, err := cli.Build(sc, cfg, host, logger, cli.BuildOptions{
			Hooks: []domain.LifecycleHooks{streams.Hooks(), cli.DebugHooks(logger)},
		})
		if err != nil {
			return err
		}

		opts := []httpAdapter.Option{
			httpAdapter.WithStreams(streams),
			httpAdapter.WithResultStore(app.Store),
			httpAdapter.WithGatherer(app.Metrics),
			httpAdapter.WithLogger(logger),
		}
		if push != nil {
			opts = append(opts, httpAdapter.WithSnapshotFeed(push))
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           httpAdapter.NewHandler(app.Engine, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		runErrors := make(chan error, 1)
		go func() { runErrors <- app.Run(sc) }()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("http server listening", "address", addr, "device", host.Device, "feed", feedMode)
			serverErrors <- srv.ListenAndServe()
		}()

		var runErr error
		select {
		case err := <-serverErrors:
			runErr = fmt.Errorf("server error: %w", err)
		case err := <-runErrors:
			runErr = fmt.Errorf("snapshot feed stopped: %w", err)
			if err == nil {
				runErr = errors.New("snapshot feed closed")
			}
		case <-sc.Done():
			logger.Info("shutting down", "signal", sc.Signal())
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("graceful shutdown did not complete", "err", err)
			_ = srv.Close()
		}
		if err := app.Close(ctx); err != nil {
			logger.Warn("engine close failed", "err", err)
		}
		sc.Cancel()
		logger.Info("server stopped")
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on (default: http.addr from config)")
	serveCmd.Flags().String("feed", feedPoll, "Snapshot source: poll (uiautomator over adb) or push (POST /v1/snapshots)")
}
