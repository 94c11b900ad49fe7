package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvierd/thirdtime/internal/adapters/mcp"
	"github.com/xvierd/thirdtime/internal/ports"
	"github.com/xvierd/thirdtime/internal/services"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol (MCP) server on stdio for AI assistants.
When a timer is running at the control address the tools drive it;
otherwise the server hosts its own cycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := setupSignalHandler(cmd.Context())
		defer cancel()

		store, err := openStorage()
		if err != nil {
			return err
		}

		var controller ports.CycleController
		client := newClient()
		if _, err := client.State(ctx); err == nil {
			app.logger.Info("MCP tools attached to running timer", "addr", controlAddr())
			controller = client
		} else {
			h, err := newHost()
			if err != nil {
				return err
			}
			defer h.Close()
			controller = h.cycle
		}

		server := mcp.NewServer(controller, services.NewHistoryService(store), Version)
		app.logger.Info("MCP server listening on stdio")
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	},
}
