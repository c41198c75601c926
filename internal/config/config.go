// Package config assembles runtime settings for the civid binaries from
// three layers: built-in defaults, an optional JSON file (-c/-config), and
// command-line flags. Later layers win.
package config

import "time"

// AppName identifies the application in the health endpoint and logs.
const AppName = "civistrom-id"

// Config holds runtime settings shared by the civid binaries.
//
// Fields:
//   - VaultDSN: path to the SQLite vault database file.
//   - AutoLockDuration: how long the app may sit in the background before
//     the session is purged.
//   - EndpointAddr: host:port the web delivery server listens on.
type Config struct {
	VaultDSN         string
	AutoLockDuration time.Duration
	EndpointAddr     string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.VaultDSN = "civid.db"
	c.AutoLockDuration = 5 * time.Minute
	c.EndpointAddr = ":8080"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
