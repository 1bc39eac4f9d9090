package cmd

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/go-vfs/internal/config"
	"github.com/deploymenttheory/go-vfs/internal/logger"
	"github.com/deploymenttheory/go-vfs/internal/vfs"
	"github.com/deploymenttheory/go-vfs/internal/vfs/crypto"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the vfs command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vfs",
		Short: "Manage encrypted single-file virtual file systems",
		Long: `vfs creates and manipulates container files that hold a complete
directory tree. Every cluster of a container is checksummed and encrypted;
the header carries the volume label and layout.

The container path comes from --container, the VFS_CONTAINER_PATH
environment variable or the container.path config key.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $VFS_CONFIG or a search of standard locations)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-format", "human", "Log format: json or human")
	flags.StringP("container", "c", "", "container file")
	flags.String("passphrase", "", "passphrase the container is encrypted with")
	flags.StringP("output", "o", "text", "output format: text, json or yaml")

	rootCmd.AddCommand(
		newFormatCmd(),
		newLabelCmd(),
		newInfoCmd(),
		newCheckCmd(),
		newLsCmd(),
		newMkdirCmd(),
		newRmdirCmd(),
		newTouchCmd(),
		newRmCmd(),
		newPutCmd(),
		newPatchCmd(),
		newGetCmd(),
		newCatCmd(),
		newAttribCmd(),
		newSumCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		logger.LogError("Command execution failed", err, nil)
		return 1
	}
	return 0
}

// setup loads the configuration with flags layered on top and starts logging
func setup(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	cfgFile, _ := flags.GetString("config")
	if cfgFile == "" {
		cfgFile = os.Getenv(config.EnvPrefix + "_CONFIG")
	}
	if err := config.Initialize(cfgFile); err != nil {
		return err
	}

	v := config.Viper()
	for key, flag := range map[string]string{
		"debug":                "debug",
		"log_format":           "log-format",
		"container.path":       "container",
		"container.passphrase": "passphrase",
	} {
		if flags.Changed(flag) {
			if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
				return err
			}
		}
	}
	if err := config.Refresh(); err != nil {
		return err
	}

	if err := logger.InitLogger(logger.LoggerConfig{
		Debug:     config.Instance.Debug,
		LogFormat: config.Instance.LogFormat,
		LogFile:   config.Instance.LogFile,
	}); err != nil {
		return err
	}

	logger.LogDebug("configuration loaded", map[string]interface{}{
		"command":     cmd.Name(),
		"config_file": config.ConfigFile,
		"loaded":      config.ConfigLoaded,
	})
	return nil
}

// containerOptions builds the vfs options from the loaded configuration
func containerOptions() ([]vfs.Option, error) {
	c := config.Instance.Container
	cipher, err := crypto.PassphraseCipher(c.Passphrase)
	if err != nil {
		return nil, err
	}
	return []vfs.Option{
		vfs.WithLogger(logger.Named("vfs")),
		vfs.WithCipher(cipher),
		vfs.WithClusterSize(c.ClusterSize),
		vfs.WithCacheSize(c.CacheSize),
	}, nil
}

func containerPath() (string, error) {
	path := config.Instance.Container.Path
	if path == "" {
		return "", fmt.Errorf("no container given: use --container or set %s_CONTAINER_PATH", config.EnvPrefix)
	}
	return path, nil
}

// withContainer opens the configured container for the duration of fn
func withContainer(fn func(*vfs.FS) error) error {
	path, err := containerPath()
	if err != nil {
		return err
	}
	opts, err := containerOptions()
	if err != nil {
		return err
	}
	return vfs.WithContainer(path, fn, opts...)
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}
