package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/ngabopay/ussdpilot/internal/cli"
	"github.com/ngabopay/ussdpilot/pkg/adapters/mcp"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP server, so agents can dial USSD codes, check the
engine status, classify screen texts and fetch stored results as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		host := cli.ADBHost(cfg.Device, logger)
		app, err := cli.Build(sc, cfg, host, logger, cli.BuildOptions{
			Hooks: []domain.LifecycleHooks{cli.DebugHooks(logger)},
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(context.WithoutCancel(sc)); err != nil {
				logger.Warn("engine close failed", "err", err)
			}
		}()
		go func() {
			if err := app.Run(sc); err != nil {
				logger.Error("snapshot feed stopped", "err", err)
			}
		}()

		srv := mcp.NewServer(app.Engine, mcp.WithResultStore(app.Store), mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("mcp server starting (stdio)")
			return srv.ServeStdio()
		case "sse":
			addr, _ := cmd.Flags().GetString("addr")
			if !cmd.Flags().Changed("addr") {
				addr = cfg.MCP.Addr
			}
			err := srv.ServeSSE(sc, addr, cfg.MCP.BaseURL)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("mcp server stopped")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport type (stdio, sse)")
	mcpCmd.Flags().String("addr", ":8081", "Address for the SSE transport (default: mcp.addr from config)")
}
