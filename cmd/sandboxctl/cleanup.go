package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Tear down the workspace and release all tracked sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.Cleanup(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "workspace cleaned up")
			return nil
		},
	}
}
