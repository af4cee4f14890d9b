// Package asterisk issues CLI commands to the telephony switch and checks
// the replies for their success tokens.
package asterisk

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/rs/zerolog"
)

// Runner executes one CLI command and returns its raw output
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// ExecRunner shells out to `asterisk -rx`
type ExecRunner struct {
	Binary string
}

// NewExecRunner returns a runner for the given asterisk binary path
func NewExecRunner(binary string) *ExecRunner {
	if binary == "" {
		binary = "asterisk"
	}
	return &ExecRunner{Binary: binary}
}

func (r *ExecRunner) Run(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Binary, "-rx", command)
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return string(out), ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("exit status %d: %w", exitErr.ExitCode(), err)
		}
		return string(out), err
	}
	return string(out), nil
}

// Client wraps a Runner with the typed operations the control plane needs
type Client struct {
	runner  Runner
	timeout time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a switch client. Every command is bounded by timeout.
func NewClient(runner Runner, timeout time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if m == nil {
		m = metrics.Get()
	}
	return &Client{
		runner:  runner,
		timeout: timeout,
		logger:  logger.With().Str("component", "asterisk").Logger(),
		metrics: m,
	}
}

// run issues command once; timeouts and non-zero exits become command failures
func (c *Client) run(ctx context.Context, verb, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.runner.Run(ctx, command)
	c.metrics.RecordSwitchCommand(verb, time.Since(start), err)

	if err != nil {
		detail := command
		if out != "" {
			detail += ": " + strings.TrimSpace(out)
		}
		c.logger.Warn().Err(err).Str("command", command).Msg("switch command failed")
		return out, apperr.New(apperr.KindCommand, verb, detail, err)
	}
	c.logger.Debug().Str("command", command).Dur("took", time.Since(start)).Msg("switch command")
	return out, nil
}

// expect runs command and requires one of tokens in the reply
func (c *Client) expect(ctx context.Context, verb, command string, tokens ...string) (string, error) {
	out, err := c.run(ctx, verb, command)
	if err != nil {
		return out, err
	}
	if !containsAny(out, tokens...) {
		return out, apperr.New(apperr.KindCommand, verb, command+": "+strings.TrimSpace(out), errors.New("unexpected reply"))
	}
	return out, nil
}

func containsAny(out string, tokens ...string) bool {
	lower := strings.ToLower(out)
	for _, t := range tokens {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// QueueShow returns the raw `queue show` dump, optionally for one queue
func (c *Client) QueueShow(ctx context.Context, queue string) (string, error) {
	command := "queue show"
	if queue != "" {
		command += " " + queue
	}
	return c.run(ctx, "queue show", command)
}

// Channels returns the raw concise channel listing
func (c *Client) Channels(ctx context.Context) (string, error) {
	return c.run(ctx, "core show channels", "core show channels concise")
}

// AddMember binds iface to queue, optionally starting paused. An already
// present member counts as success.
func (c *Client) AddMember(ctx context.Context, iface, queue string, penalty int, paused bool, name string) error {
	pausedArg := 0
	if paused {
		pausedArg = 1
	}
	command := fmt.Sprintf("queue add member %s to %s penalty %d paused %d", iface, queue, penalty, pausedArg)
	if name != "" {
		command += fmt.Sprintf(" as %s", quoteArg(name))
	}
	_, err := c.expect(ctx, "queue add member", command, "Added", "Already")
	return err
}

// RemoveMember unbinds iface from queue
func (c *Client) RemoveMember(ctx context.Context, iface, queue string) error {
	command := fmt.Sprintf("queue remove member %s from %s", iface, queue)
	_, err := c.expect(ctx, "queue remove member", command, "Removed")
	return err
}

// PauseMember pauses or unpauses iface. An empty queue applies to every queue the member is in.
func (c *Client) PauseMember(ctx context.Context, iface, queue, reason string, paused bool) error {
	verb := "queue pause member"
	if !paused {
		verb = "queue unpause member"
	}
	command := verb + " " + iface
	if queue != "" {
		command += " queue " + queue
	}
	if paused && reason != "" {
		command += " reason " + quoteArg(reason)
	}

	out, err := c.run(ctx, verb, command)
	if err != nil {
		return err
	}
	lower := strings.ToLower(out)
	ok := strings.Contains(lower, "unpaused")
	if paused {
		ok = strings.Contains(lower, "paused") && !ok
	}
	if !ok {
		return apperr.New(apperr.KindCommand, verb, command+": "+strings.TrimSpace(out), errors.New("unexpected reply"))
	}
	return nil
}

// Hangup requests a hangup of channel
func (c *Client) Hangup(ctx context.Context, channel string) error {
	_, err := c.expect(ctx, "channel request hangup", "channel request hangup "+channel, "Requested Hangup")
	return err
}

// Spy originates a ChanSpy session from iface onto channel with the given options
func (c *Client) Spy(ctx context.Context, iface, channel, options string) error {
	command := fmt.Sprintf("channel originate %s application ChanSpy %s,%s", iface, channel, options)
	out, err := c.run(ctx, "channel originate", command)
	if err != nil {
		return err
	}
	if containsAny(out, "unable", "failed", "no such", "error") {
		return apperr.New(apperr.KindCommand, "channel originate", command+": "+strings.TrimSpace(out), errors.New("originate rejected"))
	}
	return nil
}

// Reload reloads one module, e.g. "pbx_config.so" or "app_queue.so"
func (c *Client) Reload(ctx context.Context, module string) error {
	command := "module reload " + module
	out, err := c.run(ctx, "module reload", command)
	if err != nil {
		return apperr.New(apperr.KindReload, "module reload", command, err)
	}
	if !containsAny(out, "reloaded", "reload successful") || containsAny(out, "not currently loaded", "no such module") {
		return apperr.New(apperr.KindReload, "module reload", command+": "+strings.TrimSpace(out), errors.New("unexpected reply"))
	}
	return nil
}

func quoteArg(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + strings.ReplaceAll(s, `"`, "") + `"`
	}
	return s
}
