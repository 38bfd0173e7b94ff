package main

import (
	"github.com/spf13/cobra"

	"github.com/nkkko/sandboxcore/internal/mcpserver"
)

func newServeMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-mcp",
		Short: "Run an MCP server over stdio exposing exec/apply-patch/upload/download/preview-link as tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			server := mcpserver.New(svc)
			return mcpserver.Serve(cmd.Context(), server)
		},
	}
}
