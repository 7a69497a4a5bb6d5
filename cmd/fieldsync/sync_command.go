package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fieldsync/internal/api"
	"fieldsync/internal/daemonrun"
	"fieldsync/internal/ipc"
	"fieldsync/internal/queue"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var local bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued actions now",
		Long: "Run one sync pass. When the daemon is running the pass runs inside it; " +
			"otherwise the queue is replayed from this process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var report api.SyncReport
			viaDaemon := false
			if client, dialErr := ipc.Dial(cfg.SocketPath()); dialErr == nil && !local {
				defer client.Close()
				resp, err := client.SyncNow()
				if err != nil {
					return err
				}
				report = resp.Report
				viaDaemon = true
			} else {
				if dialErr == nil {
					_ = client.Close()
				}
				store, err := queue.Open(cfg)
				if err != nil {
					return fmt.Errorf("open queue store: %w", err)
				}
				defer store.Close()
				driver := daemonrun.NewDriver(cfg, store, ctx.logger())
				result, err := driver.Sync(cmd.Context())
				if err != nil {
					return err
				}
				report = api.FromSyncReport(result)
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{"daemon": viaDaemon, "report": report})
			}
			printSyncReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&local, "local", false, "Replay from this process even when the daemon is running")
	return cmd
}

func printSyncReport(out io.Writer, report api.SyncReport) {
	if report.Skipped != "" {
		fmt.Fprintf(out, "Sync skipped: %s\n", report.Skipped)
		return
	}
	if report.Attempted == 0 {
		fmt.Fprintln(out, "Nothing to sync")
		return
	}
	fmt.Fprintf(out, "Synced %d of %d queued actions in %dms\n", report.Succeeded, report.Attempted, report.DurationMS)
	if report.Failed > 0 {
		fmt.Fprintf(out, "%d failed and stay queued\n", report.Failed)
	}
	if report.DeadLettered > 0 {
		fmt.Fprintf(out, "%d moved to dead letters (see `fieldsync queue dead`)\n", report.DeadLettered)
	}
}
