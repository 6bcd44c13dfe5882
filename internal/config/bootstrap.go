// Package config loads the monitor daemon's runtime configuration: socket
// path, plan-cache directory, scheduler batch size, and an event-field
// alphabet. The automata in internal/hnl are built over the alphabet of
// the loaded spec document (internal/specfile), not over this one.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapConfig is the subset of config.yaml that must be readable
// before the full viper-backed Config is initialized: a CLI client
// locating the daemon's socket, or a daemon process deciding whether to
// auto-start, both need these fields before anything else about the
// process's working directory or flags has been resolved.
//
// This consolidates what would otherwise be duplicate direct-YAML-read
// structs scattered across cmd/hnamon subcommands.
type BootstrapConfig struct {
	SocketPath string `yaml:"socket-path"`
	NoDaemon   bool   `yaml:"no-daemon"`
}

// LoadBootstrapConfig reads and parses config.yaml directly from dir,
// bypassing the viper singleton. Returns an empty BootstrapConfig (not
// nil) if the file doesn't exist or can't be parsed -- a missing or
// malformed bootstrap file is not fatal, it just means every field falls
// back to its command-line or compiled-in default.
func LoadBootstrapConfig(dir string) *BootstrapConfig {
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return &BootstrapConfig{}
	}

	var cfg BootstrapConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &BootstrapConfig{}
	}
	return &cfg
}

// EnvSocketPath is the environment variable that overrides the socket
// path found in config.yaml -- checked first, ahead of the file.
const EnvSocketPath = "HNAMON_SOCKET_PATH"

// SocketPathOrEnv returns the effective socket path: the environment override
// if set, otherwise the bootstrap config's value, otherwise "".
func (c *BootstrapConfig) SocketPathOrEnv() string {
	if env := os.Getenv(EnvSocketPath); env != "" {
		return env
	}
	return c.SocketPath
}
