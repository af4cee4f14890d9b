package cli

import (
	"fmt"
	"io"

	"github.com/dennisdiepolder/callctl/internal/stats"
	"github.com/dennisdiepolder/callctl/internal/status"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newParseCmd(logger zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse captured switch output from stdin",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "queues",
			Short: "Parse `queue show` output into queue statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dump, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				summaries, skipped := status.ParseQueues(string(dump))
				if skipped > 0 {
					logger.Warn().Int("skipped", skipped).Msg("unrecognized lines")
				}

				type queueView struct {
					Stats   types.QueueStats `json:"stats"`
					Members []status.Member  `json:"members"`
					Callers []status.Caller  `json:"callers"`
				}
				out := make([]queueView, len(summaries))
				for i, q := range summaries {
					out[i] = queueView{
						Stats:   stats.Display(stats.Aggregate(q, nil, 0)),
						Members: q.Members,
						Callers: q.Callers,
					}
				}
				return printJSON(cmd.OutOrStdout(), out)
			},
		},
		&cobra.Command{
			Use:   "channels",
			Short: "Parse `core show channels concise` output",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dump, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				channels, skipped := status.ParseChannels(string(dump))
				if skipped > 0 {
					logger.Warn().Int("skipped", skipped).Msg("unrecognized lines")
				}
				if channels == nil {
					channels = []status.Channel{}
				}
				return printJSON(cmd.OutOrStdout(), channels)
			},
		},
	)
	return cmd
}
