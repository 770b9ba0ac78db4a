// Command sectorfs hosts a formatted sectorfs filesystem and an interactive
// shell for exploring it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/psarda/sectorfs/internal/logger"
	"github.com/psarda/sectorfs/pkg/config"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	format := pflag.BoolP("format", "f", false, "format the device before use")
	logLevel := pflag.String("log-level", "", "log level override (DEBUG, INFO, WARN, ERROR)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sectorfs: %v\n", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	// A memory device starts blank every run; there is nothing to load.
	doFormat := *format || cfg.Device.Type == "memory"

	stack, err := config.BuildFileSystem(cfg, doFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sectorfs: %v\n", err)
		os.Exit(1)
	}

	shell := newShell(stack)
	if err := shell.run(); err != nil {
		fmt.Fprintf(os.Stderr, "sectorfs: %v\n", err)
	}

	if err := stack.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "sectorfs: shutdown: %v\n", err)
		os.Exit(1)
	}
}
