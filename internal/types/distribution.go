package types

// QueueStrategy is the switch-side member selection strategy
type QueueStrategy string

const (
	QueueRingAll     QueueStrategy = "ringall"
	QueueLeastRecent QueueStrategy = "leastrecent"
	QueueFewestCalls QueueStrategy = "fewestcalls"
	QueueRandom      QueueStrategy = "random"
	QueueRRMemory    QueueStrategy = "rrmemory"
	QueueLinear      QueueStrategy = "linear"
	QueueWRandom     QueueStrategy = "wrandom"
)

// Valid reports whether s is a strategy the switch accepts
func (s QueueStrategy) Valid() bool {
	switch s {
	case QueueRingAll, QueueLeastRecent, QueueFewestCalls, QueueRandom,
		QueueRRMemory, QueueLinear, QueueWRandom:
		return true
	}
	return false
}

// Queue is an externally edited queue definition
type Queue struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Strategy    QueueStrategy `json:"strategy"`
	Timeout     int           `json:"timeout"`     // ring seconds per member
	Retry       int           `json:"retry"`       // seconds between rounds
	MaxWait     int           `json:"maxWait"`     // seconds, 0 = unlimited
	MaxLen      int           `json:"maxLen"`      // callers, 0 = unlimited
	SLThreshold int           `json:"slThreshold"` // seconds
	Department  string        `json:"department,omitempty"`
}

// QueueMember binds an agent interface to a queue
type QueueMember struct {
	Queue     string `json:"queue"`
	Interface string `json:"interface"` // PJSIP/<ext>
	Name      string `json:"name,omitempty"`
	Penalty   int    `json:"penalty"`
	Paused    bool   `json:"paused"`
	Reason    string `json:"reason,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// RingStrategy is how a ring group walks its members
type RingStrategy string

const (
	RingAll        RingStrategy = "ringall"
	RingHunt       RingStrategy = "hunt"
	RingMemoryHunt RingStrategy = "memoryhunt"
	RingRandom     RingStrategy = "random"
)

// MemberType distinguishes local extensions from outside numbers
type MemberType string

const (
	MemberExtension MemberType = "extension"
	MemberExternal  MemberType = "external"
)

// RingGroupMember is one ordered destination of a ring group
type RingGroupMember struct {
	Type    MemberType `json:"type" yaml:"type"`
	Value   string     `json:"value" yaml:"value"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
}

// FallbackType is what happens once ring time runs out
type FallbackType string

const (
	FallbackVoicemail FallbackType = "voicemail"
	FallbackExtension FallbackType = "extension"
	FallbackQueue     FallbackType = "queue"
	FallbackIVR       FallbackType = "ivr"
	FallbackHangup    FallbackType = "hangup"
)

// Fallback is the single post-ring destination of a ring group
type Fallback struct {
	Type  FallbackType `json:"type" yaml:"type"`
	Value string       `json:"value,omitempty" yaml:"value"`
}

// RingGroup is an externally edited ring group definition.
// Member order is significant.
type RingGroup struct {
	ID       int64             `json:"id" yaml:"id"`
	Number   string            `json:"number" yaml:"number"`
	Name     string            `json:"name" yaml:"name"`
	Strategy RingStrategy      `json:"strategy" yaml:"strategy"`
	RingTime int               `json:"ringTime" yaml:"ring_time"` // seconds
	Members  []RingGroupMember `json:"members" yaml:"members"`
	Fallback Fallback          `json:"fallback" yaml:"fallback"`
}

// EnabledMembers returns the enabled members in their original order
func (g RingGroup) EnabledMembers() []RingGroupMember {
	out := make([]RingGroupMember, 0, len(g.Members))
	for _, m := range g.Members {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}
