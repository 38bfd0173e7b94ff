package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nkkko/sandboxcore/internal/telemetry"
)

func newDownloadCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "download <host-path>",
		Short: "Download a file from the workspace at the given host-relative path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostPath := args[0]

			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)
			content, err := svc.DownloadFile(ctx, hostPath)
			if err != nil {
				return err
			}

			if outFile == "" {
				_, err := cmd.OutOrStdout().Write(content)
				return err
			}
			return os.WriteFile(outFile, content, 0o644)
		},
	}

	cmd.Flags().StringVar(&outFile, "to", "", "Write the downloaded content to this local path instead of stdout")
	return cmd
}
