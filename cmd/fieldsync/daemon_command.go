package main

import (
	"github.com/spf13/cobra"

	"fieldsync/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Daemon process entrypoints (internal)",
		Hidden: true,
	}

	runCmd := &cobra.Command{
		Use:          "run",
		Short:        "Run the sync daemon in the foreground",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: ctx.logLevel()})
		},
	}
	daemonCmd.AddCommand(runCmd)
	return daemonCmd
}
