package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/owlplug/owlplug-engine/internal/install"
)

var (
	installName    string
	installURL     string
	installCreator string
	installTarget  string
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download and install a plugin package",
		Long: `Download a plugin package archive, infer its layout and copy the plugin
files into the target directory.

Three archive layouts are recognised:
  DIRECT      plugin files at the archive root
  NESTED      a single top-level directory holding the plugin files
  NESTED_ENV  per-platform directories ("win", "osx") under the root

Temporary files are kept under the configured temp directory.`,
		Example: `  owlplug install --name Dexed --url https://example.com/dexed.zip --target ~/.vst3`,
		Args:    cobra.NoArgs,
		RunE:    installRun,
	}

	cmd.Flags().StringVar(&installName, "name", "", "package name (required)")
	cmd.Flags().StringVar(&installURL, "url", "", "package download URL (required)")
	cmd.Flags().StringVar(&installCreator, "creator", "", "package creator")
	cmd.Flags().StringVar(&installTarget, "target", "", "installation target directory (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func installRun(cmd *cobra.Command, args []string) error {
	if globalInstaller == nil {
		return fmt.Errorf("installer not initialized")
	}

	product := install.Product{Name: installName, DownloadURL: installURL, Creator: installCreator}
	t := install.NewTask(globalInstaller, product, installTarget)
	if err := runForeground(cmd.Context(), cmd.OutOrStdout(), t); err != nil {
		return err
	}

	res := t.Result
	fmt.Fprintf(cmd.OutOrStdout(), "Installed %s into %s (%s layout, %d files, %s downloaded)\n",
		product.Name, installTarget, res.Layout, res.Files, humanize.IBytes(uint64(res.ArchiveSize)))
	return nil
}
