package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/owlplug/owlplug-engine/internal/config"
)

var configInitForce bool

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage owlplug configuration. Subcommands allow viewing the effective
configuration and writing a default config file.`,
		Example: `  owlplug config show
  owlplug config init`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration in YAML format. If a config file
is loaded, shows the loaded configuration with any command-line overrides
applied.`,
		Example: `  owlplug config show
  owlplug config show --config /etc/owlplug/owlplug.yaml`,
		RunE: configShowRun,
	}

	return cmd
}

func configShowRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	data, err := globalCfg.Marshal()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfgPath != "" {
		fmt.Fprintf(out, "# loaded from %s\n", cfgPath)
	}
	fmt.Fprint(out, string(data))
	return nil
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write a default config file",
		Long: `Write the default configuration to PATH, or to the user config directory
(e.g. ~/.config/owlplug/owlplug.yaml) when PATH is omitted. An existing
file is only replaced with --force.`,
		Example: `  owlplug config init
  owlplug config init ./owlplug.yaml --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: configInitRun,
	}

	cmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")

	return cmd
}

func configInitRun(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		p, err := xdg.ConfigFile(filepath.Join("owlplug", "owlplug.yaml"))
		if err != nil {
			return fmt.Errorf("resolving config path: %w", err)
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	data, err := config.DefaultConfig().Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
	return nil
}
