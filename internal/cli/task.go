package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/milohq/milo-memory/internal/activity"
	"github.com/milohq/milo-memory/internal/model"
	"github.com/milohq/milo-memory/internal/store"
)

func init() {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Track the requests the agent is working on",
	}

	addCmd := &cobra.Command{
		Use:   "add <request>",
		Short: "Record a new task",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTaskAdd,
	}
	addCmd.Flags().String("source", "", "Where the request came from (channel, user, ...)")
	addCmd.Flags().String("status", model.TaskPending, "Initial status: pending or running")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		Run:   runTaskList,
	}
	listCmd.Flags().String("status", "", "Filter by status: pending, running, done, failed")
	listCmd.Flags().IntP("limit", "l", 20, "Max tasks")
	listCmd.Flags().StringP("output", "o", outputText, "Output format: text, json, or yaml")

	doneCmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Close a task",
		Args:  cobra.ExactArgs(1),
		Run:   runTaskDone,
	}
	doneCmd.Flags().String("status", model.TaskDone, "Final status: done or failed")
	doneCmd.Flags().String("summary", "", "What came of it")

	taskCmd.AddCommand(addCmd, listCmd, doneCmd)
	RootCmd.AddCommand(taskCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")
	status, _ := cmd.Flags().GetString("status")

	a, err := openActivity()
	if err != nil {
		exitErr(cmd, "open activity", err)
	}
	defer a.Close()

	t, err := a.Add(cmd.Context(), activity.AddParams{
		Source:  source,
		Request: strings.Join(args, " "),
		Status:  status,
	})
	if err != nil {
		exitErr(cmd, "add task", err)
	}
	printJSON(cmd.OutOrStdout(), t)
}

func runTaskList(cmd *cobra.Command, args []string) {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	output, _ := cmd.Flags().GetString("output")

	a, err := openActivity()
	if err != nil {
		exitErr(cmd, "open activity", err)
	}
	defer a.Close()

	tasks, err := a.List(cmd.Context(), activity.ListParams{Status: status, Limit: limit})
	if err != nil {
		exitErr(cmd, "list tasks", err)
	}

	err = writeOutput(cmd.OutOrStdout(), output, tasks, func(w io.Writer) error {
		if len(tasks) == 0 {
			_, err := fmt.Fprintln(w, "No tasks found")
			return err
		}
		for _, t := range tasks {
			line := fmt.Sprintf("%s [%s] %s  (%s)", t.ID, t.Status, t.Request, t.CreatedAt.Format(store.TimeLayout))
			if t.Summary != "" {
				line += " -> " + t.Summary
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		exitErr(cmd, "list tasks", err)
	}
}

func runTaskDone(cmd *cobra.Command, args []string) {
	status, _ := cmd.Flags().GetString("status")
	summary, _ := cmd.Flags().GetString("summary")

	a, err := openActivity()
	if err != nil {
		exitErr(cmd, "open activity", err)
	}
	defer a.Close()

	t, err := a.Complete(cmd.Context(), activity.CompleteParams{
		ID:      args[0],
		Status:  status,
		Summary: summary,
	})
	if err != nil {
		exitErr(cmd, "complete task", err)
	}
	printJSON(cmd.OutOrStdout(), t)
}
