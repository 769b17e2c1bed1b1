package types

import (
	"errors"
	"strings"

	"github.com/mesh-intelligence/hive/internal/logging"
)

// Config holds everything needed to open a bridge: the database to attach,
// the output buffer size the caller allocates, and the server clock.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database" yaml:"database"`
	DataDir  string         `mapstructure:"data_dir" json:"data_dir" yaml:"data_dir"`
	Bridge   BridgeConfig   `mapstructure:"bridge" json:"bridge" yaml:"bridge"`
	Time     TimeConfig     `mapstructure:"time" json:"time" yaml:"time"`
	Log      LogConfig      `mapstructure:"log" json:"log" yaml:"log"`
}

// DatabaseConfig selects the database/sql driver. An empty DSN for sqlite
// means hive.db inside DataDir.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" json:"dsn" yaml:"dsn"`
}

// BridgeConfig controls the call surface.
type BridgeConfig struct {
	OutputCapacity int  `mapstructure:"output_capacity" json:"output_capacity" yaml:"output_capacity"`
	FailureReply   bool `mapstructure:"failure_reply" json:"failure_reply" yaml:"failure_reply"`
}

// TimeConfig sets how the server clock relates to the host clock. Offset,
// Hour and Date are kept as text; bad values are reported when the clock is
// built and then ignored.
type TimeConfig struct {
	Type   string `mapstructure:"type" json:"type" yaml:"type"`
	Offset string `mapstructure:"offset" json:"offset" yaml:"offset"`
	Hour   string `mapstructure:"hour" json:"hour" yaml:"hour"`
	Date   string `mapstructure:"date" json:"date" yaml:"date"`
}

type LogConfig struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
}

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Server clock modes. Matching is case-insensitive.
const (
	TimeLocal  = "Local"
	TimeCustom = "Custom"
	TimeStatic = "Static"
)

// DefaultOutputCapacity is the output buffer size used when none is set.
const DefaultOutputCapacity = 4096

// MinOutputCapacity fits the shortest reply, [], and its terminator.
const MinOutputCapacity = 3

// Config validation errors.
var (
	ErrDriverEmpty      = errors.New("database driver must not be empty")
	ErrDriverUnknown    = errors.New("unknown database driver")
	ErrDSNRequired      = errors.New("database dsn is required for this driver")
	ErrCapacityTooSmall = errors.New("output capacity too small")
	ErrTimeTypeUnknown  = errors.New("unknown time type")
	ErrLogLevelUnknown  = errors.New("unknown log level")
)

var knownDrivers = map[string]bool{
	DriverSQLite:   true,
	DriverPostgres: true,
}

// Default returns the configuration written by hive init.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Driver: DriverSQLite},
		Bridge:   BridgeConfig{OutputCapacity: DefaultOutputCapacity},
		Time:     TimeConfig{Type: TimeLocal},
		Log:      LogConfig{Level: "info"},
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Database.Driver == "" {
		return ErrDriverEmpty
	}
	if !knownDrivers[c.Database.Driver] {
		return ErrDriverUnknown
	}
	if c.Database.Driver == DriverPostgres && c.Database.DSN == "" {
		return ErrDSNRequired
	}
	if c.Bridge.OutputCapacity < MinOutputCapacity {
		return ErrCapacityTooSmall
	}
	if _, ok := TimeMode(c.Time.Type); !ok {
		return ErrTimeTypeUnknown
	}
	if strings.TrimSpace(c.Log.Level) != "" {
		if _, ok := logging.ParseLevel(c.Log.Level); !ok {
			return ErrLogLevelUnknown
		}
	}
	return nil
}

// TimeMode normalizes a configured time type. Empty means Local.
func TimeMode(s string) (string, bool) {
	switch {
	case s == "", strings.EqualFold(s, TimeLocal):
		return TimeLocal, true
	case strings.EqualFold(s, TimeCustom):
		return TimeCustom, true
	case strings.EqualFold(s, TimeStatic):
		return TimeStatic, true
	default:
		return "", false
	}
}
