package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkkko/sandboxcore/internal/telemetry"
)

func newPreviewLinkCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "preview-link",
		Short: "Resolve a public preview URL for a port inside the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port <= 0 {
				return fmt.Errorf("sandboxctl: --port is required")
			}

			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)
			link, err := svc.GetPreviewLink(ctx, port)
			if err != nil {
				return err
			}
			if link.URL == "" {
				return fmt.Errorf("sandboxctl: no preview link available for port %d", port)
			}

			fmt.Fprintln(cmd.OutOrStdout(), link.URL)
			if link.Token != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", link.Token)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port inside the workspace to resolve a preview link for")
	return cmd
}
