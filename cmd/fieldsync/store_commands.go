package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fieldsync/internal/backend"
	"fieldsync/internal/visit"
)

func newStoresCommand(ctx *commandContext) *cobra.Command {
	storesCmd := &cobra.Command{
		Use:   "stores",
		Short: "List assigned stores",
	}
	storesCmd.AddCommand(newStoresListCommand(ctx))
	storesCmd.AddCommand(newStoresNearbyCommand(ctx))
	return storesCmd
}

func newStoresListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stores assigned to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withVisit(func(svc *visit.Service) error {
				stores, cached, err := svc.Stores(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"stores": stores, "cached": cached})
				}
				out := cmd.OutOrStdout()
				if cached {
					fmt.Fprintln(out, "Offline: showing the last fetched store list")
				}
				if len(stores) == 0 {
					fmt.Fprintln(out, "No stores assigned")
					return nil
				}
				rows := make([][]string, 0, len(stores))
				for _, store := range stores {
					rows = append(rows, []string{store.ID, store.Name, store.Address})
				}
				fmt.Fprint(out, renderTable([]string{"ID", "Name", "Address"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newStoresNearbyCommand(ctx *commandContext) *cobra.Command {
	var loc locationFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "Measure the distance to each assigned store",
		RunE: func(cmd *cobra.Command, args []string) error {
			here, err := loc.location(cmd)
			if err != nil {
				return err
			}
			return ctx.withVisit(func(svc *visit.Service) error {
				result, err := svc.Nearby(cmd.Context(), here)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				if result.Cached {
					fmt.Fprintln(out, "Offline: using the last fetched store list")
				}
				if len(result.Stores) == 0 {
					fmt.Fprintln(out, "No stores assigned")
					return nil
				}
				rows := make([][]string, 0, len(result.Stores))
				for _, sd := range result.Stores {
					marker := ""
					if result.Match != nil && result.Match.Store.ID == sd.Store.ID {
						marker = "check-in"
					}
					rows = append(rows, []string{sd.Store.ID, sd.Store.Name, formatDistance(sd.Distance), marker})
				}
				fmt.Fprint(out, renderTable([]string{"ID", "Name", "Distance", ""}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
				if result.Match == nil {
					fmt.Fprintf(out, "No store within %s\n", formatDistance(result.Radius))
				}
				return nil
			})
		},
	}
	loc.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newWorkflowsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "workflows [store-id]",
		Short: "List the workflows of a store (defaults to the checked-in store)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID := ""
			if len(args) == 1 {
				storeID = strings.TrimSpace(args[0])
			}
			return ctx.withVisit(func(svc *visit.Service) error {
				workflows, err := svc.Workflows(cmd.Context(), storeID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, workflows)
				}
				out := cmd.OutOrStdout()
				if len(workflows) == 0 {
					fmt.Fprintln(out, "No workflows scheduled")
					return nil
				}
				rows := make([][]string, 0, len(workflows))
				for _, wf := range workflows {
					rows = append(rows, []string{wf.ID, wf.Name, strconv.Itoa(len(wf.Tasks))})
				}
				fmt.Fprint(out, renderTable([]string{"ID", "Name", "Tasks"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect a workflow",
	}

	var jsonOutput bool
	showCmd := &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Show the tasks of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("workflow id is required")
			}
			client, _, err := ctx.backendClient()
			if err != nil {
				return err
			}
			wf, err := client.Workflow(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, wf)
			}
			printWorkflow(cmd, wf)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	workflowCmd.AddCommand(showCmd)
	return workflowCmd
}

func printWorkflow(cmd *cobra.Command, wf backend.Workflow) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", wf.Name, wf.ID)
	if desc := strings.TrimSpace(wf.Description); desc != "" {
		fmt.Fprintln(out, desc)
	}
	if len(wf.Tasks) == 0 {
		fmt.Fprintln(out, "No tasks")
		return
	}
	rows := make([][]string, 0, len(wf.Tasks))
	for _, task := range sortedTasks(wf.Tasks) {
		rows = append(rows, []string{
			strconv.Itoa(task.Order),
			task.ID,
			task.Name,
			formatLabel(string(task.Type)),
			yesNo(task.Required),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"#", "ID", "Name", "Type", "Required"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}
