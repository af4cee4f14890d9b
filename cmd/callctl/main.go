package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dennisdiepolder/callctl/internal/cli"
	"github.com/rs/zerolog"
)

// Set by ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cli.SetVersionInfo(version, commit)
	if err := cli.NewRootCmd(logger).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
