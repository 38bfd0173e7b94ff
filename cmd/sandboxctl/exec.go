package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nkkko/sandboxcore/internal/envelope"
	"github.com/nkkko/sandboxcore/internal/execsvc"
	"github.com/nkkko/sandboxcore/internal/telemetry"
)

func newExecCmd() *cobra.Command {
	var workdir string
	var timeoutMs int

	cmd := &cobra.Command{
		Use:   "exec -- <cmd> [args...]",
		Short: "Run a command in the sandbox workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)
			start := time.Now()
			res := svc.Exec(ctx, execsvc.Input{Cmd: args, Workdir: workdir, TimeoutMs: timeoutMs})
			text, err := envelope.Marshal(res, time.Since(start))
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}

	cmd.Flags().StringVar(&workdir, "workdir", "", "Working directory for the command, relative to the workspace root")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "Timeout in milliseconds (0 = backend default)")
	return cmd
}
