package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kestrelsys/kestrel/bootstrap"
	"github.com/kestrelsys/kestrel/config"
)

// Stamped by the build pipeline via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		basePath     = flag.String("config", "", "base configuration file (yaml, json or toml)")
		overridePath = flag.String("override", config.DefaultOverridePath, "deployment override file")
		showVersion  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("kestreld %s (%s)\n", version, commit)
		return
	}

	app := bootstrap.New(bootstrap.Options{
		BasePath:     *basePath,
		OverridePath: *overridePath,
		Version:      version,
	})

	if err := app.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "kestreld: %v\n", err)
		os.Exit(1)
	}
}
