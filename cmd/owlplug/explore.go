package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/owlplug/owlplug-engine/internal/project"
)

func newExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore PATH",
		Short: "Record the plugins used by DAW projects",
		Long: `Explore a project file, or every project file beneath a directory, and
store the plugins each project references. Re-exploring a project replaces
what was stored for it. Files that cannot be read or parsed are reported
and skipped.`,
		Example: `  owlplug explore ~/Music/Ableton
  owlplug explore "~/Music/Ableton/Live Set.als"`,
		Args: cobra.ExactArgs(1),
		RunE: exploreRun,
	}

	return cmd
}

func exploreRun(cmd *cobra.Command, args []string) error {
	if globalExplorer == nil || globalStore == nil {
		return fmt.Errorf("project explorer not initialized")
	}

	t := project.NewTask(globalExplorer, globalStore, args[0], logger)
	err := runForeground(cmd.Context(), cmd.OutOrStdout(), t)
	fmt.Fprintf(cmd.OutOrStdout(), "Explored %d project(s)\n", t.Explored)
	return err
}
