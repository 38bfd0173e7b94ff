package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nkkko/sandboxcore/internal/envelope"
	"github.com/nkkko/sandboxcore/internal/telemetry"
)

func newApplyPatchCmd() *cobra.Command {
	var patchFile string

	cmd := &cobra.Command{
		Use:   "apply-patch",
		Short: "Apply a V4A-format patch to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if patchFile != "" {
				f, err := os.Open(patchFile)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			raw, err := io.ReadAll(r)
			if err != nil {
				return err
			}

			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)
			start := time.Now()
			res := svc.ApplyPatch(ctx, string(raw))
			text, err := envelope.Marshal(res, time.Since(start))
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}

	cmd.Flags().StringVar(&patchFile, "file", "", "Read the patch from this file instead of stdin")
	return cmd
}
