package config

import (
	"flag"
	"os"
	"time"

	"github.com/civistrom/civid/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   path to the SQLite vault file
//	-l int      auto-lock delay, minutes
//	-a string   web server bind address (e.g., ":8080")
//
// The args are filtered to just the flags handled here so the -c/-config
// flag consumed by the JSON layer does not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-l", "-a"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.VaultDSN, "d", config.VaultDSN, "path to vault database file")
	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run web server")
	autoLockMinutes := fs.Int("l", int(config.AutoLockDuration.Minutes()), "auto-lock delay (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AutoLockDuration = time.Duration(*autoLockMinutes) * time.Minute
}
