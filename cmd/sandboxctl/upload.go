package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nkkko/sandboxcore/internal/telemetry"
)

func newUploadCmd() *cobra.Command {
	var localFile string

	cmd := &cobra.Command{
		Use:   "upload <host-path>",
		Short: "Upload a file into the workspace at the given host-relative path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostPath := args[0]

			var r io.Reader = cmd.InOrStdin()
			if localFile != "" {
				f, err := os.Open(localFile)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			content, err := io.ReadAll(r)
			if err != nil {
				return err
			}

			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)
			if err := svc.UploadFile(ctx, hostPath, content); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d bytes to %s\n", len(content), hostPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&localFile, "from", "", "Read the file content from this local path instead of stdin")
	return cmd
}
