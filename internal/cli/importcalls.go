package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dennisdiepolder/callctl/internal/dialplan"
	"github.com/dennisdiepolder/callctl/internal/storage"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CallRecordSink stores finished calls for SLA history
type CallRecordSink interface {
	SaveCallRecord(ctx context.Context, record types.CallRecord) error
}

func newImportCallsCmd(logger zerolog.Logger) *cobra.Command {
	var slThreshold int

	cmd := &cobra.Command{
		Use:   "import-calls <calls.jsonl>",
		Short: "Load finished call records into the DynamoDB history table",
		Long: `Read call records (one JSON object per line) and store them in the call
records table used for windowed SLA figures. Requires STORE_MODE=dynamo-local
or dynamo-aws. Records missing a date, call id or valid queue are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := storage.LoadConfig()
			if !cfg.Dynamo() {
				return fmt.Errorf("import-calls needs a DynamoDB store, STORE_MODE is %q", cfg.Mode)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := storage.NewDynamoDBStore(ctx, cfg, logger)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open call records: %w", err)
			}
			defer f.Close()

			saved, skipped, err := importCalls(ctx, f, store, slThreshold)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d call records, skipped %d\n", saved, skipped)
			return err
		},
	}

	cmd.Flags().IntVar(&slThreshold, "sl-threshold", 0, "mark answered calls within this many seconds as inside SL")
	return cmd
}

// importCalls streams records from r into sink. A write failure stops the import.
func importCalls(ctx context.Context, r io.Reader, sink CallRecordSink, slThreshold int) (int, int, error) {
	var saved, skipped int
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec types.CallRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		if rec.CallID == "" || storage.ValidDate(rec.DateKey) != nil || !dialplan.ValidQueueName(rec.Queue) {
			skipped++
			continue
		}
		if slThreshold > 0 {
			rec.AnsweredInSL = !rec.Abandoned && rec.WaitTime <= float64(slThreshold)
		}
		if err := sink.SaveCallRecord(ctx, rec); err != nil {
			return saved, skipped, err
		}
		saved++
	}
	if err := scanner.Err(); err != nil {
		return saved, skipped, fmt.Errorf("failed to read call records: %w", err)
	}
	return saved, skipped, nil
}
