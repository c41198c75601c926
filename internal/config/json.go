package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/civistrom/civid/internal/flagx"
	"github.com/civistrom/civid/internal/timex"
)

// JsonConfig is the file-format shape of Config. Interval fields use
// timex.Duration so both "5m" strings and integer nanoseconds parse.
type JsonConfig struct {
	VaultDSN         string         `json:"vault_dsn"`
	AutoLockDuration timex.Duration `json:"auto_lock_duration"`
	EndpointAddr     string         `json:"endpoint_addr"`
}

// parseJson overlays values from the JSON file named by -c/-config, if any.
// An unreadable or malformed file panics: a config the user pointed at but
// that cannot be used is a startup failure, not something to silently skip.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.VaultDSN != "" {
		config.VaultDSN = c.VaultDSN
	}
	if c.AutoLockDuration.Duration != 0 {
		config.AutoLockDuration = time.Duration(c.AutoLockDuration.Duration)
	}
	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
}
