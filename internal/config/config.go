package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// v is the package-level viper instance backing Get/Set/Load. It is
// reinitialized by Initialize rather than created fresh per call so that
// flag bindings set up once at CLI startup survive across subsequent
// Get/Set calls made deeper in the command tree.
var v *viper.Viper

// Config is the monitor daemon's fully resolved runtime configuration.
type Config struct {
	SocketPath         string   `mapstructure:"socket-path"`
	PlanCacheDir       string   `mapstructure:"plan-cache-dir"`
	SchedulerBatchSize int      `mapstructure:"scheduler-batch-size"`
	Alphabet           []string `mapstructure:"alphabet"`
	LogLevel           string   `mapstructure:"log-level"`
	NATSURL            string   `mapstructure:"nats-url"`
}

// BootstrapOnlyKeys are settings that affect how the daemon starts and
// must therefore be resolved from BootstrapConfig before viper (and the
// rest of Config) is ever initialized -- a distinction between startup
// flags and steady-state config.
var BootstrapOnlyKeys = map[string]bool{
	"socket-path": true,
	"no-daemon":   true,
}

// Initialize sets up the package's viper instance: defaults, the
// HNAMON_-prefixed environment override, and (if configPath is non-empty)
// a config file to read on top of the defaults. With an empty configPath
// only defaults and environment apply; a named config file that cannot be
// read (including one that does not exist) or parsed is an error.
func Initialize(configPath string) error {
	v = viper.New()
	v.SetEnvPrefix("HNAMON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("socket-path", "/tmp/hnamon.sock")
	v.SetDefault("plan-cache-dir", "/tmp/hnamon-plans")
	v.SetDefault("scheduler-batch-size", 64)
	v.SetDefault("alphabet", []string{"0", "1", "2", "3"})
	v.SetDefault("log-level", "info")

	if configPath == "" {
		return nil
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading %s: %w", configPath, err)
	}
	return nil
}

// Load unmarshals the current viper state into a Config and validates it.
func Load() (*Config, error) {
	if v == nil {
		if err := Initialize(""); err != nil {
			return nil, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every structural problem in c at once, accumulate-then
// -join, the same style used by internal/hnl.PrenexFormula.Validate and
// internal/hna.NewSpec.
func (c *Config) Validate() error {
	var errs []string
	if c.SocketPath == "" {
		errs = append(errs, "socket-path must not be empty")
	}
	if c.SchedulerBatchSize <= 0 {
		errs = append(errs, "scheduler-batch-size must be positive")
	}
	if len(c.Alphabet) == 0 {
		errs = append(errs, "alphabet must not be empty")
	}
	if len(errs) != 0 {
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Get returns the raw value for key from the package viper instance.
func Get(key string) interface{} {
	if v == nil {
		return nil
	}
	return v.Get(key)
}

// GetString returns key's value as a string.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// Set overrides key's value for the lifetime of the process -- used to
// bind parsed CLI flags over config-file/env defaults.
func Set(key string, value interface{}) {
	if v == nil {
		_ = Initialize("")
	}
	v.Set(key, value)
}
