package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cocoa-dashboard/internal/services"
	"cocoa-dashboard/internal/tools"
	"cocoa-dashboard/pkg/version"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newMCPCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analytics as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			// stdout carries the protocol stream
			logger := offlineLogger(cmd, cfg)

			analytics, err := loadAnalytics(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stdio := server.NewStdioServer(newMCPServer(analytics))
			stdio.SetErrorLogger(log.New(cmd.ErrOrStderr(), "mcp: ", log.LstdFlags))

			logger.Info("serving MCP tools on stdio")
			if err := stdio.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}
}

func newMCPServer(analytics *services.Analytics) *server.MCPServer {
	s := server.NewMCPServer("cocoa-dashboard", version.Version)
	tools.Register(s, analytics)
	return s
}
