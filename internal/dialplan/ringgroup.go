// Package dialplan compiles ring group and queue definitions into switch
// configuration and applies it with a write-then-reload cycle.
package dialplan

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/types"
)

// DefaultRingTime applies when a group has none configured
const DefaultRingTime = 20

// Shuffler permutes n items in place; *rand.Rand satisfies it
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// LockedShuffler lets goroutines share one Shuffler, such as a *rand.Rand,
// which is not safe for concurrent use on its own
type LockedShuffler struct {
	mu sync.Mutex
	s  Shuffler
}

// NewLockedShuffler wraps s
func NewLockedShuffler(s Shuffler) *LockedShuffler {
	return &LockedShuffler{s: s}
}

func (l *LockedShuffler) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.Shuffle(n, swap)
}

// Artifact is one generated configuration file
type Artifact struct {
	Name   string // file name inside the config directory
	Kind   string // "ringgroup" or "queue"
	Module string // module to reload after writing
	Body   []byte
}

var (
	numberRe    = regexp.MustCompile(`^[0-9A-Za-z*#+_-]+$`)
	externalRe  = regexp.MustCompile(`^\+?[0-9]+$`)
	extensionRe = regexp.MustCompile(`^[0-9A-Za-z*#]+$`)
	targetRe    = regexp.MustCompile(`^[0-9A-Za-z_.+-]+$`)
	soundRe     = regexp.MustCompile(`^[0-9A-Za-z_./-]+$`)
)

// RingGroupContext names the dialplan context of a group
func RingGroupContext(number string) string {
	return "ringgroup-" + number
}

// CompileRingGroup renders one ring group as a dialplan context.
//
// ringall dials every enabled member at once in list order. hunt and
// memoryhunt dial them one at a time in list order. random shuffles the
// members once here and then hunts, so the artifact keeps that order until
// the next compile. After the members, exactly one fallback runs.
func CompileRingGroup(g types.RingGroup, shuffler Shuffler) (Artifact, error) {
	if err := validateGroup(g); err != nil {
		return Artifact{}, err
	}

	ringTime := g.RingTime
	if ringTime <= 0 {
		ringTime = DefaultRingTime
	}
	members := g.EnabledMembers()

	strategy := g.Strategy
	if strategy == types.RingRandom && len(members) > 1 && shuffler != nil {
		shuffler.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
	}

	ctxName := RingGroupContext(g.Number)
	var b bytes.Buffer
	fmt.Fprintf(&b, "; generated by callctl, changes are overwritten on the next apply\n")
	fmt.Fprintf(&b, "; ring group %s %q strategy=%s ring_time=%d\n", g.Number, g.Name, strategyLabel(strategy), ringTime)
	fmt.Fprintf(&b, "[%s]\n", ctxName)
	fmt.Fprintf(&b, "exten => s,1,NoOp(Ring group %s)\n", g.Number)
	fmt.Fprintf(&b, " same => n,Set(__RINGGROUP=%s)\n", g.Number)

	switch {
	case len(members) == 0:
		b.WriteString("; no enabled members, straight to fallback\n")
		fmt.Fprintf(&b, " same => n,NoOp(Ring group %s has no enabled members)\n", g.Number)
	case strategy == types.RingAll:
		dials := make([]string, len(members))
		for i, m := range members {
			dials[i] = dialString(m)
		}
		fmt.Fprintf(&b, " same => n,Dial(%s,%d)\n", strings.Join(dials, "&"), ringTime)
		b.WriteString(" same => n,GotoIf($[\"${DIALSTATUS}\" = \"ANSWER\"]?answered)\n")
	default:
		for _, m := range members {
			fmt.Fprintf(&b, " same => n,Dial(%s,%d)\n", dialString(m), ringTime)
			b.WriteString(" same => n,GotoIf($[\"${DIALSTATUS}\" = \"ANSWER\"]?answered)\n")
		}
	}

	writeFallback(&b, g)
	b.WriteString(" same => n(answered),Hangup()\n")
	fmt.Fprintf(&b, "\nexten => %s,1,Goto(%s,s,1)\n", g.Number, ctxName)

	return Artifact{
		Name:   ctxName + ".conf",
		Kind:   "ringgroup",
		Module: "pbx_config.so",
		Body:   b.Bytes(),
	}, nil
}

func strategyLabel(s types.RingStrategy) string {
	switch s {
	case types.RingAll, types.RingHunt, types.RingMemoryHunt, types.RingRandom:
		return string(s)
	}
	return string(types.RingHunt)
}

func dialString(m types.RingGroupMember) string {
	if m.Type == types.MemberExternal {
		return fmt.Sprintf("Local/%s@from-internal/n", m.Value)
	}
	return "PJSIP/" + m.Value
}

// writeFallback emits the single post-ring destination. A missing or
// unknown type goes to the group's own voicemail.
func writeFallback(b *bytes.Buffer, g types.RingGroup) {
	fb := g.Fallback
	switch fb.Type {
	case types.FallbackExtension:
		fmt.Fprintf(b, " same => n,Dial(PJSIP/%s,%d)\n", fb.Value, ringTimeOf(g))
		b.WriteString(" same => n,GotoIf($[\"${DIALSTATUS}\" = \"ANSWER\"]?answered)\n")
		fmt.Fprintf(b, " same => n,VoiceMail(%s@default,u)\n", fb.Value)
		b.WriteString(" same => n,Hangup()\n")
	case types.FallbackQueue:
		fmt.Fprintf(b, " same => n,Queue(%s)\n", fb.Value)
		b.WriteString(" same => n,Hangup()\n")
	case types.FallbackIVR:
		fmt.Fprintf(b, " same => n,Goto(ivr-%s,s,1)\n", fb.Value)
	case types.FallbackHangup:
		msg := fb.Value
		if msg == "" {
			msg = "vm-goodbye"
		}
		fmt.Fprintf(b, " same => n,Playback(%s)\n", msg)
		b.WriteString(" same => n,Hangup()\n")
	default:
		box := g.Number
		if fb.Type == types.FallbackVoicemail && fb.Value != "" {
			box = fb.Value
		}
		fmt.Fprintf(b, " same => n,VoiceMail(%s@default,u)\n", box)
		b.WriteString(" same => n,Hangup()\n")
	}
}

func ringTimeOf(g types.RingGroup) int {
	if g.RingTime <= 0 {
		return DefaultRingTime
	}
	return g.RingTime
}

func validateGroup(g types.RingGroup) error {
	const op = "compile ring group"
	if !numberRe.MatchString(g.Number) {
		return apperr.Validation(op, "invalid group number %q", g.Number)
	}
	for i, m := range g.Members {
		if !m.Enabled {
			continue
		}
		switch m.Type {
		case types.MemberExternal:
			if !externalRe.MatchString(m.Value) {
				return apperr.Validation(op, "group %s member %d: invalid external number %q", g.Number, i, m.Value)
			}
		case types.MemberExtension, "":
			if !extensionRe.MatchString(m.Value) {
				return apperr.Validation(op, "group %s member %d: invalid extension %q", g.Number, i, m.Value)
			}
		default:
			return apperr.Validation(op, "group %s member %d: unknown member type %q", g.Number, i, m.Type)
		}
	}

	switch g.Fallback.Type {
	case types.FallbackExtension, types.FallbackQueue, types.FallbackIVR:
		if g.Fallback.Value == "" {
			return apperr.Validation(op, "group %s: fallback %s needs a value", g.Number, g.Fallback.Type)
		}
	}
	valueRe := targetRe
	if g.Fallback.Type == types.FallbackHangup {
		valueRe = soundRe
	}
	if g.Fallback.Value != "" && !valueRe.MatchString(g.Fallback.Value) {
		return apperr.Validation(op, "group %s: invalid fallback value %q", g.Number, g.Fallback.Value)
	}
	return nil
}
