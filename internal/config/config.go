package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-vfs/internal/utils/fsutil"
	"github.com/deploymenttheory/go-vfs/internal/vfs"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config files and directories
	AppName = "go-vfs"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "VFS"
)

// AppConfig holds the application configuration
type AppConfig struct {
	// Core settings
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Container defaults
	Container struct {
		Path        string `mapstructure:"path"`
		ClusterSize int    `mapstructure:"cluster_size"`
		CacheSize   int    `mapstructure:"cache_size"`
		Passphrase  string `mapstructure:"passphrase"`
		Label       string `mapstructure:"label"`
	} `mapstructure:"container"`
}

// Global variables
var (
	// Global configuration instance
	Instance AppConfig

	// Status indicators
	ConfigLoaded bool
	ConfigFile   string

	// Viper instance
	v *viper.Viper
)

// Initialize sets up the configuration system. Calling it again reloads
// defaults, the config file and the environment.
func Initialize(cfgFile string) error {
	v = viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		addSearchPaths(v)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	ConfigLoaded = false
	ConfigFile = ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		ConfigLoaded = true
		ConfigFile = v.ConfigFileUsed()
	}

	Instance = AppConfig{}
	if err := v.Unmarshal(&Instance); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}
	return nil
}

// Viper returns the viper instance behind Instance, for flag binding
func Viper() *viper.Viper {
	if v == nil {
		v = viper.New()
		setDefaults(v)
	}
	return v
}

// Refresh re-reads Instance from viper after flags have been bound
func Refresh() error {
	if err := Viper().Unmarshal(&Instance); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")
	v.SetDefault("log_file", "")

	v.SetDefault("container.path", "")
	v.SetDefault("container.cluster_size", vfs.DefaultClusterSize)
	v.SetDefault("container.cache_size", vfs.DefaultCacheSize)
	v.SetDefault("container.passphrase", "")
	v.SetDefault("container.label", "")
}

// addSearchPaths adds config search paths
func addSearchPaths(v *viper.Viper) {
	v.AddConfigPath(".")
	if configDir, err := fsutil.GetConfigDir(AppName); err == nil {
		v.AddConfigPath(configDir)
	}
}

// DefaultLogFile returns the log file path used when logging to a file is requested without a path
func DefaultLogFile() string {
	logDir, err := fsutil.GetLogDir(AppName)
	if err != nil {
		return filepath.Join("logs", AppName+".log")
	}
	return filepath.Join(logDir, AppName+".log")
}

// SaveConfig saves the current configuration to a file
func SaveConfig(filePath string) error {
	saveV := viper.New()
	saveV.SetConfigFile(filePath)

	saveV.Set("debug", Instance.Debug)
	saveV.Set("log_format", Instance.LogFormat)
	saveV.Set("log_file", Instance.LogFile)
	saveV.Set("container", map[string]interface{}{
		"path":         Instance.Container.Path,
		"cluster_size": Instance.Container.ClusterSize,
		"cache_size":   Instance.Container.CacheSize,
		"passphrase":   Instance.Container.Passphrase,
		"label":        Instance.Container.Label,
	})

	if err := fsutil.CreateDirIfNotExists(afero.NewOsFs(), filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return saveV.WriteConfig()
}
