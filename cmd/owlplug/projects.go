package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List explored DAW projects",
		Example: `  owlplug projects
  owlplug projects show 3`,
		Args: cobra.NoArgs,
		RunE: projectsListRun,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a project and the plugins it references",
		Args:  cobra.ExactArgs(1),
		RunE:  projectsShowRun,
	})

	return cmd
}

func projectsListRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("store not initialized")
	}
	out := cmd.OutOrStdout()

	projects, err := globalStore.ListProjects()
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects explored yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Application", "Plugins", "Modified", "Path"})
	for _, p := range projects {
		t.AppendRow(table.Row{p.ID, p.Name, p.AppFullName, p.PluginCount, humanize.Time(p.LastModifiedAt), p.Path})
	}
	t.Render()
	return nil
}

func projectsShowRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("store not initialized")
	}
	out := cmd.OutOrStdout()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid project id %q", args[0])
	}
	p, err := globalStore.GetProject(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s (%s, format %s)\n", p.Name, p.AppFullName, p.FormatVersion)
	fmt.Fprintf(out, "Path:     %s\n", p.Path)
	fmt.Fprintf(out, "Created:  %s\n", p.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "Modified: %s\n", p.LastModifiedAt.Format("2006-01-02 15:04"))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Plugin", "Format", "File", "UID"})
	for _, pl := range p.Plugins {
		t.AppendRow(table.Row{pl.Position + 1, pl.Name, pl.Format, pl.FileName, pl.UID})
	}
	t.Render()
	return nil
}
