// Package cli implements the callctl operator commands. They run offline
// against files and captured switch output; nothing here needs the server.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit string) {
	appVersion = version
	appCommit = commit
}

// NewRootCmd builds the command tree. Each call returns a fresh tree so
// flags never leak between runs.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "callctl",
		Short: "Call distribution compiler and agent state tools",
		Long: `callctl compiles ring group and queue definitions into switch
configuration, parses captured switch status output and rebuilds agent
login and pause totals from ledger files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "callctl %s\ncommit: %s\n", appVersion, appCommit)
			},
		},
		newCompileCmd(),
		newParseCmd(logger),
		newReconstructCmd(),
		newImportCallsCmd(logger),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
