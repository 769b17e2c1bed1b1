package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/hive/internal/paths"
	"github.com/mesh-intelligence/hive/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// envPrefix maps a key like bridge.output_capacity to
	// HIVE_BRIDGE_OUTPUT_CAPACITY.
	envPrefix = "HIVE"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# hive configuration

database:
  # sqlite or postgres
  driver: sqlite
  # required for postgres, optional for sqlite
  # dsn:

# Directory holding hive.db (optional; overridable by --data-dir)
# data_dir:

bridge:
  output_capacity: 4096
  # write ["ERROR",kind] instead of nothing when a call is dropped
  failure_reply: false

time:
  # local, custom or static
  type: local
  # custom: +h[:mm] or a Go duration
  # offset: "+2"
  # static: hour of day, optional d/m/yyyy date
  # hour: "12"
  # date: "1/6/2012"

log:
  level: info
`

// loadConfig reads config.yaml from configDir, writing the default file on
// first run, and overlays HIVE_* environment variables.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v, types.Default())
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// setDefaults registers every key so AutomaticEnv can see it during
// Unmarshal.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("bridge.output_capacity", d.Bridge.OutputCapacity)
	v.SetDefault("bridge.failure_reply", d.Bridge.FailureReply)
	v.SetDefault("time.type", d.Time.Type)
	v.SetDefault("time.offset", d.Time.Offset)
	v.SetDefault("time.hour", d.Time.Hour)
	v.SetDefault("time.date", d.Time.Date)
	v.SetDefault("log.level", d.Log.Level)
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// resolveConfig loads and validates the effective configuration for a
// command, honoring the global directory flags.
func resolveConfig() (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return types.Config{}, err
	}

	cfg := types.Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir, err = paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
