package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dennisdiepolder/callctl/internal/definitions"
	"github.com/dennisdiepolder/callctl/internal/dialplan"
	"github.com/spf13/cobra"
)

func newCompileCmd() *cobra.Command {
	var (
		outDir string
		seed   int64
	)

	cmd := &cobra.Command{
		Use:   "compile <definitions.yaml>",
		Short: "Compile ring groups and queues to switch configuration",
		Long: `Compile every ring group and queue in a definitions file.

Artifacts are printed to stdout, or written to --out as one file each.
A definition that fails validation is reported and the rest still compile.
Use --seed to make the member order of random ring groups reproducible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := definitions.LoadFile(args[0])
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			artifacts, failures := compileAll(cmd.Context(), defs, rand.New(rand.NewSource(seed)))

			out := cmd.OutOrStdout()
			for _, art := range artifacts {
				if outDir == "" {
					fmt.Fprintf(out, ";; %s\n%s\n", art.Name, art.Body)
					continue
				}
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				path := filepath.Join(outDir, art.Name)
				if err := os.WriteFile(path, art.Body, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(out, "wrote %s\n", path)
			}

			for _, f := range failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", f)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d of %d definitions failed", len(failures), len(artifacts)+len(failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write artifacts into this directory")
	cmd.Flags().Int64Var(&seed, "seed", 0, "shuffle seed for random ring groups")
	return cmd
}

func compileAll(ctx context.Context, defs definitions.Source, shuffler dialplan.Shuffler) ([]dialplan.Artifact, []error) {
	var (
		artifacts []dialplan.Artifact
		failures  []error
	)
	if ctx == nil {
		ctx = context.Background()
	}

	groups, err := defs.RingGroups(ctx)
	if err != nil {
		return nil, []error{err}
	}
	for _, g := range groups {
		art, err := dialplan.CompileRingGroup(g, shuffler)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		artifacts = append(artifacts, art)
	}

	queues, err := defs.Queues(ctx)
	if err != nil {
		return artifacts, append(failures, err)
	}
	names := make([]string, len(queues))
	for i, q := range queues {
		names[i] = q.Name
	}
	members, err := defs.QueueMembers(ctx, names)
	if err != nil {
		return artifacts, append(failures, err)
	}
	for _, q := range queues {
		art, err := dialplan.CompileQueue(q, members[q.Name])
		if err != nil {
			failures = append(failures, err)
			continue
		}
		artifacts = append(artifacts, art)
	}
	return artifacts, failures
}
