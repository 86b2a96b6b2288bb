package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	tasksKind  string
	tasksLimit int
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Show recent units of work",
		Long: `Show recorded runs of file syncs, installs and project explorations,
newest first, with their outcome and last progress message.`,
		Example: `  owlplug tasks
  owlplug tasks --kind install --limit 5`,
		Args: cobra.NoArgs,
		RunE: tasksRun,
	}

	cmd.Flags().StringVar(&tasksKind, "kind", "", "only show this kind (file-sync, install, explore)")
	cmd.Flags().IntVar(&tasksLimit, "limit", 20, "maximum number of runs to show")

	return cmd
}

func tasksRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("store not initialized")
	}
	out := cmd.OutOrStdout()

	runs, err := globalStore.ListTaskRuns(tasksKind, tasksLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No tasks recorded.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Started", "Kind", "Name", "Status", "Duration", "Message"})
	for _, run := range runs {
		duration := "-"
		if !run.EndTime.IsZero() {
			duration = run.EndTime.Sub(run.StartTime).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{humanize.Time(run.StartTime), run.Kind, run.Name, run.Status, duration, run.Message})
	}
	t.Render()
	return nil
}
