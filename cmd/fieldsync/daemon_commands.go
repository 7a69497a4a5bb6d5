package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldsync/internal/daemonctl"
)

const (
	daemonStartWait = 10 * time.Second
	daemonStopGrace = 5 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newRestartCommand(ctx),
		newStatusCommand(ctx),
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the background sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), daemonStartWait)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Launched {
				fmt.Fprintln(out, "Daemon not running, launching...")
			}
			printStartResult(out, result, "Daemon started", "Daemon already running")
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the sync daemon; queued writes stay on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), daemonStopGrace)
			switch {
			case errors.Is(err, daemonctl.ErrDaemonNotRunning):
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			case err != nil:
				return err
			}
			if result.StopAcknowledged {
				fmt.Fprintln(out, "Stopping sync loop...")
			} else {
				fmt.Fprintln(out, "Stop request sent")
			}
			printStopResult(out, result)
			return nil
		},
	}
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.Restart(ctx.configValue(), exe, daemonLaunchOptions(ctx), daemonStopGrace, daemonStartWait)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.WasRunning {
				printStopResult(out, result.Stop)
			}
			printStartResult(out, result.Start, "Daemon restarted", "Daemon restarted")
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, backend, session, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snapshot)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			printLines(out, renderSectionHeader("System Status", colorize))
			for _, line := range snapshot.Checks {
				fmt.Fprintln(out, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}

			fmt.Fprintln(out)
			printLines(out, renderSectionHeader("Queue Status", colorize))
			rows := buildQueueStatusRows(snapshot.Daemon.Queue)
			if len(rows) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			if snapshot.Daemon.LogPath != "" {
				fmt.Fprintf(out, "\nLog: %s\n", snapshot.Daemon.LogPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printStartResult(out io.Writer, result daemonctl.StartResult, started, alreadyRunning string) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(out, started)
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(out, alreadyRunning)
	default:
		msg := strings.TrimSpace(result.Message)
		if msg == "" {
			msg = "Start request sent"
		}
		fmt.Fprintln(out, msg)
	}
}

func printStopResult(out io.Writer, result daemonctl.StopResult) {
	if result.ForcedKill && result.PID > 0 {
		fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
	}
	fmt.Fprintln(out, "Daemon stopped")
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   ctx.logLevel(),
	}
}
