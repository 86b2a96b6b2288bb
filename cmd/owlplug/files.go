package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/owlplug/owlplug-engine/internal/pathcodec"
	"github.com/owlplug/owlplug-engine/internal/store"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files [PATH]",
		Short: "Show a synced directory snapshot",
		Long: `Show the stored entry for PATH and its direct children, largest first.
Without PATH, list the root of every stored snapshot.`,
		Example: `  owlplug files
  owlplug files ~/.vst3`,
		Args: cobra.MaximumNArgs(1),
		RunE: filesRun,
	}

	return cmd
}

func filesRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("store not initialized")
	}
	out := cmd.OutOrStdout()

	var (
		rows []store.FileStat
		err  error
	)
	if len(args) == 0 {
		rows, err = globalStore.ListFileStatRoots()
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No directories synced yet.")
			return nil
		}
	} else {
		key := pathcodec.Canonicalize(args[0])
		entry, err := globalStore.GetFileStat(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s\n", entry.Path, humanize.IBytes(uint64(entry.Length)))
		rows, err = globalStore.ListFileStatChildren(key)
		if err != nil {
			return err
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Size", "Path"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Size", Align: text.AlignRight},
	})
	var total int64
	for _, fs := range rows {
		t.AppendRow(table.Row{fs.Name, humanize.IBytes(uint64(fs.Length)), fs.Path})
		total += fs.Length
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d entries", len(rows)), humanize.IBytes(uint64(total)), ""})
	t.Render()
	return nil
}
