package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fieldsync/internal/backend"
	"fieldsync/internal/tasks"
	"fieldsync/internal/visit"
)

func newVisitCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newCheckInCommand(ctx),
		newCheckOutCommand(ctx),
	}
}

func newCheckInCommand(ctx *commandContext) *cobra.Command {
	var loc locationFlags
	var storeID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Check in at the nearby store",
		Long: "Check in at the first assigned store within the proximity radius, or at --store " +
			"when it is within the radius. Offline check-ins are queued and synced later.",
		RunE: func(cmd *cobra.Command, args []string) error {
			here, err := loc.location(cmd)
			if err != nil {
				return err
			}
			return ctx.withVisit(func(svc *visit.Service) error {
				result, err := svc.CheckIn(cmd.Context(), here, strings.TrimSpace(storeID))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Checked in at %s (%s away)\n", result.Store.Store.Name, formatDistance(result.Store.Distance))
				if result.Queued {
					fmt.Fprintf(out, "Offline: check-in queued as %s\n", result.QueuedAs)
				}
				return nil
			})
		},
	}
	loc.register(cmd)
	cmd.Flags().StringVar(&storeID, "store", "", "Store id (must be within the proximity radius)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCheckOutCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Check out of the active visit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withVisit(func(svc *visit.Service) error {
				result, err := svc.CheckOut(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				name := result.Visit.StoreName
				if name == "" {
					name = result.Visit.StoreID
				}
				fmt.Fprintf(out, "Checked out of %s\n", name)
				if result.Queued {
					fmt.Fprintf(out, "Offline: check-out queued as %s\n", result.QueuedAs)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Work through the tasks of a workflow",
	}
	taskCmd.AddCommand(newTaskStartCommand(ctx))
	taskCmd.AddCommand(newTaskCurrentCommand(ctx))
	taskCmd.AddCommand(newTaskCompleteCommand(ctx))
	taskCmd.AddCommand(newTaskSkipCommand(ctx))
	return taskCmd
}

func newTaskStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start [workflow-id]",
		Short: "Start a workflow at the checked-in store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := ""
			if len(args) == 1 {
				workflowID = strings.TrimSpace(args[0])
			}
			return ctx.withVisit(func(svc *visit.Service) error {
				progress, err := svc.StartWorkflow(cmd.Context(), workflowID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Started %s\n", progress.Visit.Workflow.Name)
				printProgress(out, progress)
				return nil
			})
		},
	}
}

func newTaskCurrentCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the active visit and current task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withVisit(func(svc *visit.Service) error {
				progress, err := svc.Current(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, progress)
				}
				out := cmd.OutOrStdout()
				if progress.Visit == nil {
					fmt.Fprintln(out, "Not checked in")
					return nil
				}
				fmt.Fprintf(out, "Visit: %s\n", visitLabel(progress.Visit))
				if progress.Visit.Workflow == nil {
					fmt.Fprintln(out, "No workflow started (run `fieldsync task start`)")
					return nil
				}
				fmt.Fprintf(out, "Workflow: %s\n", progress.Visit.Workflow.Name)
				printProgress(out, progress)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newTaskCompleteCommand(ctx *commandContext) *cobra.Command {
	var input visit.TaskInput
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Complete the current task",
		Long: "Complete the current task. Photo tasks take --before and --after image paths, " +
			"text tasks take --text, checklist tasks take --check per checked item id, and " +
			"select tasks take --select per chosen option value.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withVisit(func(svc *visit.Service) error {
				result, err := svc.CompleteTask(cmd.Context(), input)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				printTaskResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&input.BeforePhoto, "before", "", "Before photo file")
	cmd.Flags().StringVar(&input.AfterPhoto, "after", "", "After photo file")
	cmd.Flags().StringVar(&input.Text, "text", "", "Text answer")
	cmd.Flags().StringSliceVar(&input.Checked, "check", nil, "Checked item id (repeatable)")
	cmd.Flags().StringSliceVar(&input.Selected, "select", nil, "Selected option value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newTaskSkipCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "skip",
		Short: "Skip the current task (optional tasks only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withVisit(func(svc *visit.Service) error {
				result, err := svc.SkipTask(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				printTaskResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printTaskResult(out io.Writer, result visit.TaskResult) {
	fmt.Fprintf(out, "Task %q %s\n", result.Task.Name, result.Status)
	if len(result.QueuedPhotos) > 0 {
		fmt.Fprintf(out, "Offline: %d photo uploads queued\n", len(result.QueuedPhotos))
	}
	if result.Queued {
		fmt.Fprintln(out, "Offline: task result queued for sync")
	}
	if result.Next != nil {
		printProgress(out, *result.Next)
	}
}

func printProgress(out io.Writer, progress visit.Progress) {
	if progress.Done {
		fmt.Fprintln(out, "All tasks handled; run `fieldsync checkout` when you leave")
		return
	}
	if progress.Task == nil {
		return
	}
	task := *progress.Task
	required := "optional"
	if task.Required {
		required = "required"
	}
	fmt.Fprintf(out, "Task %d/%d: %s [%s, %s]\n", progress.Index+1, progress.Total, task.Name, formatLabel(string(task.Type)), required)
	if desc := strings.TrimSpace(task.Description); desc != "" {
		fmt.Fprintf(out, "  %s\n", desc)
	}
	for _, hint := range taskHints(task) {
		fmt.Fprintf(out, "  %s\n", hint)
	}
}

// taskHints describes what `task complete` expects for the task type.
func taskHints(task backend.Task) []string {
	switch task.Type {
	case backend.TaskPhoto:
		return []string{"--before <file> --after <file>"}
	case backend.TaskText:
		cfg, err := tasks.ParseText(task)
		if err != nil {
			return nil
		}
		hint := "--text <answer>"
		switch {
		case cfg.MinLength > 0 && cfg.MaxLength > 0:
			hint += fmt.Sprintf(" (%d to %d characters)", cfg.MinLength, cfg.MaxLength)
		case cfg.MinLength > 0:
			hint += fmt.Sprintf(" (at least %d characters)", cfg.MinLength)
		case cfg.MaxLength > 0:
			hint += fmt.Sprintf(" (at most %d characters)", cfg.MaxLength)
		}
		return []string{hint}
	case backend.TaskCheck:
		cfg, err := tasks.ParseCheck(task)
		if err != nil {
			return nil
		}
		hints := make([]string, 0, len(cfg.Items))
		for _, item := range cfg.Items {
			mark := " "
			if item.Required {
				mark = "*"
			}
			hints = append(hints, fmt.Sprintf("%s --check %s  %s", mark, item.ID, item.Label))
		}
		return hints
	case backend.TaskSelect:
		cfg, err := tasks.ParseSelect(task)
		if err != nil {
			return nil
		}
		hints := make([]string, 0, len(cfg.Options))
		for _, opt := range cfg.Options {
			hints = append(hints, fmt.Sprintf("--select %s  %s", opt.Value, opt.Label))
		}
		if cfg.AllowMultiple {
			hints = append(hints, "(multiple choices allowed)")
		}
		return hints
	default:
		return nil
	}
}
