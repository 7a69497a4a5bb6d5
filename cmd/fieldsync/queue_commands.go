package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fieldsync/internal/api"
	"fieldsync/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the offline queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueDeadCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRequeueCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				stats, err := access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				if stats.Oldest != "" {
					fmt.Fprintf(out, "Oldest pending item queued %s\n", formatAge(stats.Oldest))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items in replay order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				items, err := access.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				return printQueueItems(cmd, items, jsonOutput, "Queue is empty")
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status: pending, dead_letter (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueDeadCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "dead",
		Short: "List items parked after reaching sync.max_attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				items, err := access.DeadLetters(cmd.Context())
				if err != nil {
					return err
				}
				if err := printQueueItems(cmd, items, jsonOutput, "No dead letters"); err != nil {
					return err
				}
				if !jsonOutput && len(items) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Run `fieldsync queue requeue <id>` to retry or `fieldsync queue remove <id>` to discard")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item with its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				item, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("queue item %s not found", id)
				}
				if jsonOutput {
					return writeJSON(cmd, item)
				}
				printQueueItem(cmd.OutOrStdout(), *item)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Discard queue items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				removed, err := access.Remove(cmd.Context(), ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d of %d items\n", removed, len(ids))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard every queue item",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("clearing discards unsynced work; pass --force to confirm")
			}
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				removed, err := access.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queue items\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Confirm discarding every queued action")
	return cmd
}

func newQueueRequeueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue [id...]",
		Short: "Return dead letters to the pending queue (all when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				updated, err := access.Requeue(cmd.Context(), ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d items\n", updated)
				return nil
			})
		},
	}
}

func parseItemIDs(args []string) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id := strings.TrimSpace(arg)
		if id == "" {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printQueueItems(cmd *cobra.Command, items []api.QueueItem, jsonOutput bool, emptyMessage string) error {
	if jsonOutput {
		if items == nil {
			items = []api.QueueItem{}
		}
		return writeJSON(cmd, api.QueueListResponse{Items: items})
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, emptyMessage)
		return nil
	}
	fmt.Fprint(out, renderTable(
		[]string{"ID", "Kind", "Summary", "Status", "Attempts", "Queued", "Last Error"},
		buildQueueListRows(items),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func printQueueItem(out io.Writer, item api.QueueItem) {
	fmt.Fprintf(out, "ID:        %s\n", item.ID)
	fmt.Fprintf(out, "Kind:      %s\n", formatLabel(item.Kind))
	fmt.Fprintf(out, "Summary:   %s\n", item.Summary)
	fmt.Fprintf(out, "Status:    %s\n", formatLabel(item.Status))
	fmt.Fprintf(out, "Queued:    %s (%s)\n", item.CreatedAt, formatAge(item.CreatedAt))
	fmt.Fprintf(out, "Attempts:  %d\n", item.Attempts)
	if item.LastAttemptAt != "" {
		fmt.Fprintf(out, "Last try:  %s (%s)\n", item.LastAttemptAt, formatAge(item.LastAttemptAt))
	}
	if item.LastError != "" {
		fmt.Fprintf(out, "Error:     %s\n", item.LastError)
	}
	if len(item.Payload) > 0 {
		fmt.Fprintf(out, "Payload:   %s\n", truncate(string(item.Payload), 400))
	}
}
