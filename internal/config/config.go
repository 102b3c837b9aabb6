package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/buckleypaul/rollcall/internal/attendance"
	"github.com/buckleypaul/rollcall/internal/logger"
	"github.com/buckleypaul/rollcall/internal/outcome"
)

const (
	DefaultPaceMS   = 1200
	DefaultBaudRate = 9600
	// AutoExecuteMinLength is the shortest identifier that triggers an
	// automatic run.
	AutoExecuteMinLength = 6

	envPrefix = "ROLLCALL"
	fileName  = "config.json"
)

// Config holds all rollcall configuration.
type Config struct {
	Endpoint       string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	Origin         string `json:"origin,omitempty" mapstructure:"origin"`
	Referer        string `json:"referer,omitempty" mapstructure:"referer"`
	UserAgent      string `json:"user_agent,omitempty" mapstructure:"user_agent"`
	PaceMS         int    `json:"pace_ms,omitempty" mapstructure:"pace_ms"`
	AutoExecute    bool   `json:"auto_execute" mapstructure:"auto_execute"`
	LogCapacity    int    `json:"log_capacity,omitempty" mapstructure:"log_capacity"`
	SerialPort     string `json:"serial_port,omitempty" mapstructure:"serial_port"`
	SerialBaudRate int    `json:"serial_baud_rate,omitempty" mapstructure:"serial_baud_rate"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Endpoint:       attendance.DefaultEndpoint,
		Origin:         attendance.DefaultOrigin,
		Referer:        attendance.DefaultReferer,
		UserAgent:      attendance.DefaultUserAgent,
		PaceMS:         DefaultPaceMS,
		LogCapacity:    outcome.DefaultCapacity,
		SerialBaudRate: DefaultBaudRate,
	}
}

// Pace returns the pause before each request.
func (c Config) Pace() time.Duration {
	if c.PaceMS <= 0 {
		return DefaultPaceMS * time.Millisecond
	}
	return time.Duration(c.PaceMS) * time.Millisecond
}

// DefaultDataDir is where credentials and run history live unless overridden.
func DefaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".rollcall")
	}
	return ".rollcall"
}

func globalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rollcall"), nil
}

// Load reads and merges configuration.
// Order: defaults → global (~/.config/rollcall/config.json) →
// data dir (<dataDir>/config.json) → ROLLCALL_* environment variables.
// Unreadable files are skipped.
func Load(dataDir string) Config {
	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)

	if dir, err := globalDir(); err == nil {
		mergeFromFile(v, filepath.Join(dir, fileName))
	}
	if dataDir != "" {
		mergeFromFile(v, filepath.Join(dataDir, fileName))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		logger.ComponentLogger("config").Warnw("config unmarshal failed, using defaults", logger.FieldError, err)
		return Defaults()
	}
	return cfg
}

// Save writes the config to <dataDir>/config.json by default, or to the
// global config if global is true.
func Save(cfg Config, dataDir string, global bool) error {
	var dir string
	if global {
		d, err := globalDir()
		if err != nil {
			return err
		}
		dir = d
	} else {
		dir = dataDir
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, fileName), data, 0o644)
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("origin", d.Origin)
	v.SetDefault("referer", d.Referer)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("pace_ms", d.PaceMS)
	v.SetDefault("auto_execute", d.AutoExecute)
	v.SetDefault("log_capacity", d.LogCapacity)
	v.SetDefault("serial_port", d.SerialPort)
	v.SetDefault("serial_baud_rate", d.SerialBaudRate)
}

func mergeFromFile(v *viper.Viper, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		logger.ComponentLogger("config").Warnw("skipping unreadable config file",
			logger.FieldPath, path,
			logger.FieldError, err)
	}
}
