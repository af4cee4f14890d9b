// Package asterisktest provides a scripted switch for tests.
package asterisktest

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Reply is a canned switch response
type Reply struct {
	Output string
	Err    error
}

// Runner answers commands from a script and records what it was asked.
// Replies are matched by longest command prefix.
type Runner struct {
	mu       sync.Mutex
	replies  map[string]Reply
	commands []string
	// Block, when set, makes Run wait for ctx to expire before returning
	Block bool
}

// NewRunner creates an empty scripted runner
func NewRunner() *Runner {
	return &Runner{replies: make(map[string]Reply)}
}

// On registers the reply for commands starting with prefix
func (r *Runner) On(prefix, output string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[prefix] = Reply{Output: output}
	return r
}

// Fail registers an error reply for commands starting with prefix
func (r *Runner) Fail(prefix string, err error) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[prefix] = Reply{Err: err}
	return r
}

func (r *Runner) Run(ctx context.Context, command string) (string, error) {
	r.mu.Lock()
	r.commands = append(r.commands, command)
	var best string
	var reply Reply
	found := false
	for prefix, rep := range r.replies {
		if strings.HasPrefix(command, prefix) && len(prefix) >= len(best) {
			best, reply, found = prefix, rep, true
		}
	}
	block := r.Block
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if !found {
		return "", fmt.Errorf("no scripted reply for %q", command)
	}
	return reply.Output, reply.Err
}

// Commands returns every command seen so far, in order
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commands))
	copy(out, r.commands)
	return out
}
