// Package cli parses process-level configuration: where the TOML config
// file lives and whether to print the version and exit. Follows the
// teacher's app/cfg/loader.go pattern (go-flags with env tags, ldflags-set
// Version, graceful ErrHelp handling) rather than a hand-rolled flag.Parse.
package cli

import (
	"cmp"
	"fmt"

	flags "github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// GetVersion returns Version, or "unknown" if it was never set.
func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawArgs struct {
	ConfigPath  string `long:"config" env:"FEEDGEN_CONFIG" description:"Path to the feedgen TOML configuration file" required:"true"`
	Verbose     bool   `long:"verbose" env:"FEEDGEN_VERBOSE" description:"Enable trace-level logging"`
	ShowVersion bool   `long:"version" description:"Print the version and exit"`
}

// Args is the resolved command-line configuration.
type Args struct {
	ConfigPath string
	Verbose    bool
}

// Parse parses os.Args (via go-flags' default flags.Default parser, which
// also reads FEEDGEN_CONFIG/FEEDGEN_VERBOSE from the environment). A nil
// Args with a nil error means "--help or --version was handled, exit 0
// cleanly" — the same contract the teacher's loader.go uses.
func Parse() (*Args, error) {
	var raw rawArgs

	parser := flags.NewParser(&raw, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("could not parse command-line arguments: %w", err)
	}

	if raw.ShowVersion {
		fmt.Println(GetVersion())
		return nil, nil
	}

	return &Args{ConfigPath: raw.ConfigPath, Verbose: raw.Verbose}, nil
}
