package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/rs/zerolog"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(zerolog.Nop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const definitionsFile = `
ring_groups:
  - number: "600"
    strategy: ringall
    members:
      - {type: extension, value: "101", enabled: true}
    fallback: {type: hangup}
  - number: "bad number"
queues:
  - name: sales
    members:
      - {interface: PJSIP/101}
`

func TestCompileWritesArtifacts(t *testing.T) {
	defs := writeFile(t, "defs.yaml", definitionsFile)
	outDir := t.TempDir()

	out, err := run(t, "", "compile", defs, "--out", outDir)
	if err == nil || !strings.Contains(err.Error(), "1 of 3") {
		t.Errorf("expected one failed definition, got %v", err)
	}
	if !strings.Contains(out, "ringgroup-600.conf") || !strings.Contains(out, "queue-sales.conf") {
		t.Errorf("unexpected output: %s", out)
	}

	body, err := os.ReadFile(filepath.Join(outDir, "queue-sales.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "member => PJSIP/101,0") {
		t.Errorf("unexpected queue artifact:\n%s", body)
	}
}

func TestCompileRandomSeedIsReproducible(t *testing.T) {
	defs := writeFile(t, "defs.yaml", `
ring_groups:
  - number: "700"
    strategy: random
    members:
      - {type: extension, value: "101", enabled: true}
      - {type: extension, value: "102", enabled: true}
      - {type: extension, value: "103", enabled: true}
      - {type: extension, value: "104", enabled: true}
`)
	first, err := run(t, "", "compile", defs, "--seed", "42")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := run(t, "", "compile", defs, "--seed", "42")
	if first != second {
		t.Error("same seed produced different artifacts")
	}
}

func TestParseQueues(t *testing.T) {
	dump := `sales has 1 calls (max unlimited) in 'ringall' strategy (5s holdtime, 60s talktime), W:0, C:10, A:0, SL:100.0% within 20s
   Members:
      PJSIP/101 (dynamic) (Not in use) has taken 10 calls (last was 5 secs ago)
   Callers:
      1. PJSIP/trunk-00000001 (wait: 0:30, prio: 0)
`
	out, err := run(t, dump, "parse", "queues")
	if err != nil {
		t.Fatal(err)
	}
	var got []struct {
		Stats types.QueueStats `json:"stats"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	if len(got) != 1 || got[0].Stats.SLACompliance != 100 || got[0].Stats.LongestWait != 30 {
		t.Errorf("unexpected stats: %+v", got)
	}
}

func TestParseChannelsEmptyInput(t *testing.T) {
	out, err := run(t, "garbage\n", "parse", "channels")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected [], got %s", out)
	}
}

func TestReconstruct(t *testing.T) {
	ledger := writeFile(t, "101.jsonl", strings.Join([]string{
		`{"id":"1","agent":"101","timestamp":"2026-03-02T08:00:00Z","kind":"LOGIN"}`,
		`{"id":"2","agent":"101","timestamp":"2026-03-02T08:30:00Z","kind":"PAUSE","reason":"Lunch"}`,
		`not json`,
		`{"id":"3","agent":"101","timestamp":"2026-03-02T08:40:00Z","kind":"UNPAUSE"}`,
		`{"id":"4","agent":"101","timestamp":"2026-03-02T10:00:00Z","kind":"LOGOUT"}`,
	}, "\n"))

	out, err := run(t, "", "reconstruct", ledger, "--now", "2026-03-02T09:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	var got reconstructView
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.Times.LoginSeconds != 3600 || got.Times.PauseSeconds != 600 || got.Times.AvailableSeconds != 3000 {
		t.Errorf("unexpected times: %+v", got.Times)
	}
	if !got.Times.LoggedIn || got.Skipped != 1 {
		t.Errorf("logout after --now must be ignored: %+v", got)
	}

	if _, err := run(t, "", "reconstruct", ledger, "--now", "yesterday"); err == nil {
		t.Error("expected error for invalid --now")
	}
}

type sinkFunc func(types.CallRecord) error

func (f sinkFunc) SaveCallRecord(_ context.Context, r types.CallRecord) error { return f(r) }

func TestImportCalls(t *testing.T) {
	input := strings.Join([]string{
		`{"dateKey":"2026-03-02","callId":"c1","queue":"sales","waitTime":12}`,
		`{"dateKey":"2026-03-02","callId":"c2","queue":"sales","waitTime":45}`,
		`{"dateKey":"2026-03-02","callId":"c3","queue":"sales","abandoned":true}`,
		`{"dateKey":"03/02/2026","callId":"c4","queue":"sales"}`,
		`{"dateKey":"2026-03-02","queue":"sales"}`,
	}, "\n")

	var saved []types.CallRecord
	n, skipped, err := importCalls(context.Background(), strings.NewReader(input), sinkFunc(func(r types.CallRecord) error {
		saved = append(saved, r)
		return nil
	}), 20)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || skipped != 2 {
		t.Errorf("saved=%d skipped=%d", n, skipped)
	}
	if !saved[0].AnsweredInSL || saved[1].AnsweredInSL || saved[2].AnsweredInSL {
		t.Errorf("unexpected SL flags: %+v", saved)
	}

	boom := errors.New("throttled")
	_, _, err = importCalls(context.Background(), strings.NewReader(input), sinkFunc(func(types.CallRecord) error {
		return boom
	}), 0)
	if !errors.Is(err, boom) {
		t.Errorf("expected sink error, got %v", err)
	}
}

func TestImportCallsNeedsDynamo(t *testing.T) {
	t.Setenv("STORE_MODE", "file")
	if _, err := run(t, "", "import-calls", "calls.jsonl"); err == nil {
		t.Error("expected error without a DynamoDB store")
	}
}
