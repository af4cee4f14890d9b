package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dennisdiepolder/callctl/internal/agentstate"
	"github.com/dennisdiepolder/callctl/internal/alerts"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/spf13/cobra"
)

type reconstructView struct {
	Events         int              `json:"events"`
	Skipped        int              `json:"skipped,omitempty"`
	At             time.Time        `json:"at"`
	Times          types.AgentTimes `json:"times"`
	LoginOpenSince *time.Time       `json:"loginOpenSince,omitempty"`
	PauseOpenSince *time.Time       `json:"pauseOpenSince,omitempty"`
	Alerts         []types.Alert    `json:"alerts,omitempty"`
}

func newReconstructCmd() *cobra.Command {
	var now string

	cmd := &cobra.Command{
		Use:   "reconstruct <ledger.jsonl>",
		Short: "Rebuild login, pause and available time from a ledger file",
		Long: `Read one agent's ledger file (one JSON event per line) and print the
interval totals as of --now. Intervals still open are closed at --now and
events stamped after it are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now().UTC()
			if now != "" {
				t, err := time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
				at = t
			}

			events, skipped, err := readLedger(args[0])
			if err != nil {
				return err
			}

			res := agentstate.Reconstruct(events, at, agentstate.Live{})
			return printJSON(cmd.OutOrStdout(), reconstructView{
				Events:         len(events),
				Skipped:        skipped,
				At:             at,
				Times:          res.AgentTimes,
				LoginOpenSince: res.LoginOpenSince,
				PauseOpenSince: res.PauseOpenSince,
				Alerts:         alerts.CheckAgent(res, at),
			})
		},
	}

	cmd.Flags().StringVar(&now, "now", "", "reference instant, RFC3339 (default: current time)")
	return cmd
}

// readLedger decodes a JSONL ledger. Undecodable lines are counted, not fatal.
func readLedger(path string) ([]types.AgentEvent, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	var (
		events  []types.AgentEvent
		skipped int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e types.AgentEvent
		if err := json.Unmarshal(line, &e); err != nil || !e.Kind.Valid() {
			skipped++
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read ledger: %w", err)
	}
	return events, skipped, nil
}
