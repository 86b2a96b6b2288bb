package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/owlplug/owlplug-engine/internal/config"
	"github.com/owlplug/owlplug-engine/internal/download"
	"github.com/owlplug/owlplug-engine/internal/filesync"
	"github.com/owlplug/owlplug-engine/internal/install"
	"github.com/owlplug/owlplug-engine/internal/project"
	"github.com/owlplug/owlplug-engine/internal/store"
	"github.com/owlplug/owlplug-engine/internal/task"
)

var (
	// Global flags
	cfgPath   string
	dataDir   string
	logLevel  string
	logFormat string
	quiet     bool
	globalCfg *config.Config
	logger    = slog.Default()

	// Global components
	globalStore     *store.Store
	globalRunner    *task.Runner
	globalSyncer    *filesync.Syncer
	globalInstaller *install.Installer
	globalExplorer  *project.Registry
)

// initializeComponents opens the store and builds the engine services on top of it
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	st, err := store.New(globalCfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	globalStore = st

	globalRunner = task.NewRunner(globalCfg.Tasks.Workers, globalStore, logger)
	globalSyncer = filesync.NewSyncer(globalStore, logger)

	client := download.NewClient(logger, globalCfg.Install.UserAgent)
	globalInstaller = install.NewInstaller(client, install.Options{
		TempDir:          globalCfg.TempDir(),
		Platform:         globalCfg.Install.Platform,
		CleanupOnFailure: globalCfg.Install.CleanupOnFailure,
	}, logger)

	globalExplorer = project.NewRegistry(globalCfg.Explore.Extensions, int64(globalCfg.Explore.MaxDocumentBytes), logger)

	logger.Debug("components initialized", "db", globalCfg.DBPath(), "workers", globalCfg.Tasks.Workers)
	return nil
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmd *cobra.Command) bool {
	skipInitCmds := map[string]bool{
		"help":    true,
		"version": true,
		"config":  true,
	}
	if cmd.HasParent() && skipInitCmds[cmd.Parent().Name()] {
		return true
	}
	return skipInitCmds[cmd.Name()]
}

// closeComponents stops the runner and closes the global store connection
func closeComponents() {
	if globalRunner != nil {
		globalRunner.Close()
	}
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owlplug",
		Short: "Audio plugin discovery, installation and project analysis engine",
		Long: `owlplug keeps a persistent snapshot of your plugin directories, installs
plugin packages from a download URL into a target directory, and explores
DAW project files to record which plugins they use.

Every operation runs as a unit of work with progress reporting and can
be started from the command line or through the HTTP API (owlplug serve).`,
		Example: `  owlplug sync ~/.vst3
  owlplug install --name Dexed --url https://example.com/dexed.zip --target ~/.vst3
  owlplug explore ~/Music/Ableton
  owlplug files ~/.vst3
  owlplug serve --listen 127.0.0.1:8470`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logging
			setupLogging()

			// Skip config loading for commands that don't need it
			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			// Load config
			if cfgPath == "" {
				found, err := config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
				cfgPath = found
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			// Override with command-line flags if provided
			if dataDir != "" {
				globalCfg.Server.DataDir = dataDir
			}

			logger.Debug("config loaded", "path", cfgPath, "data_dir", globalCfg.Server.DataDir)

			// Initialize components after config is loaded
			if !shouldSkipComponentInit(cmd) {
				if err := initializeComponents(); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeComponents()
		},
	}

	// Add persistent flags
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override data directory")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress progress output and non-error logs")

	// Add subcommands
	cmd.AddCommand(
		newSyncCmd(),
		newInstallCmd(),
		newExploreCmd(),
		newFilesCmd(),
		newProjectsCmd(),
		newTasksCmd(),
		newServeCmd(),
		newConfigCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if quiet && level < slog.LevelError {
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":    true,
		"version": true,
	}
	return skipConfigCmds[cmdName]
}
