package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/owlplug/owlplug-engine/internal/filesync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync DIR",
		Short: "Snapshot a plugin directory",
		Long: `Walk a directory and persist an entry for it and every file and
directory beneath it, each carrying its recursive size in bytes. Any
snapshot previously stored for the same directory is replaced.`,
		Example: `  owlplug sync ~/.vst3
  owlplug sync "C:\Program Files\VSTPlugins"`,
		Args: cobra.ExactArgs(1),
		RunE: syncRun,
	}

	return cmd
}

func syncRun(cmd *cobra.Command, args []string) error {
	if globalSyncer == nil {
		return fmt.Errorf("file syncer not initialized")
	}

	t := filesync.NewTask(globalSyncer, args[0])
	if err := runForeground(cmd.Context(), cmd.OutOrStdout(), t); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Synced %s: %s\n", args[0], humanize.IBytes(uint64(t.Size)))
	return nil
}
