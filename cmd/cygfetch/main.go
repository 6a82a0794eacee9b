package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-edge-platform/cygfetch/internal/config"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/open-edge-platform/cygfetch/internal/utils/security"
	"github.com/spf13/cobra"
)

// Command-line flags that can override config file settings
var (
	configFile string = "" // Path to config file
	logLevel   string = "" // Empty means use config file value
	logFile    string = "" // Empty means use config file value
)

// closeLog flushes and closes the log file opened by loadConfig.
var closeLog = func() {}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := createRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}

// createRootCommand creates and configures the root cobra command with all subcommands
func createRootCommand() *cobra.Command {
	cobra.EnableTraverseRunHooks = true

	rootCmd := &cobra.Command{
		Use:   "cygfetch",
		Short: "Resolve and download Cygwin packages from a mirror",
		Long: `cygfetch reads a Cygwin setup.ini manifest, selects packages by name,
category, set or regular expression, follows their dependencies and compares
them with a local Cygwin installation.

It can list the result or download the archives into a per-mirror cache
laid out like the mirror itself.

Use 'cygfetch <command> --help' for more information about a command.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path to tee logs (overrides configuration file)")

	rootCmd.AddCommand(createListCommand())
	rootCmd.AddCommand(createFetchCommand())
	rootCmd.AddCommand(createVerifyCommand())
	rootCmd.AddCommand(createConfigCommand())
	rootCmd.AddCommand(createCacheCommand())
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createInstallCompletionCommand())

	security.AttachRecursive(rootCmd, security.DefaultLimits())
	return rootCmd
}

// loadConfig installs the global configuration and logger before any
// subcommand runs.
func loadConfig(cmd *cobra.Command, _ []string) error {
	configFilePath := configFile
	if configFilePath == "" {
		configFilePath = config.FindConfigFile()
	}

	globalConfig, err := config.LoadGlobalConfig(configFilePath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if logLevel != "" {
		globalConfig.Logging.Level = logLevel
	}
	if logFile != "" {
		globalConfig.Logging.File = logFile
	}
	if err := globalConfig.Validate(); err != nil {
		return err
	}
	config.SetGlobal(globalConfig)

	_, cleanup, err := logger.Configure(logger.Config{
		Level:    globalConfig.Logging.Level,
		FilePath: globalConfig.Logging.File,
	})
	if err != nil {
		return err
	}
	closeLog = cleanup

	log := logger.Logger()
	if configFilePath != "" {
		log.Debugf("using configuration from %s", configFilePath)
	}
	cacheDir, _ := config.CacheDir()
	log.Debugf("config: workers=%d cache_dir=%s arch=%s root_dir=%q temp_dir=%s",
		config.Workers(), cacheDir, config.Arch(), config.RootDir(), config.TempDir())
	return nil
}
