// Package status turns the switch's human-readable status dumps into
// structured queue, member and channel records.
package status

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// MemberStatus is the resolved state of a queue member
type MemberStatus string

const (
	StatusPaused      MemberStatus = "paused"
	StatusInCall      MemberStatus = "in_call"
	StatusAvailable   MemberStatus = "available"
	StatusUnavailable MemberStatus = "unavailable"
	StatusUnknown     MemberStatus = "unknown"
)

// QueueSummary is one queue block of a `queue show` dump
type QueueSummary struct {
	Name         string   `json:"name"`
	CallsWaiting int      `json:"callsWaiting"`
	MaxCallers   string   `json:"maxCallers"`
	Strategy     string   `json:"strategy"`
	HoldTime     int      `json:"holdTime"` // seconds
	TalkTime     int      `json:"talkTime"` // seconds
	Completed    int      `json:"completed"`
	Abandoned    int      `json:"abandoned"`
	SLPercent    float64  `json:"slPercent"`
	SLWindow     int      `json:"slWindow"` // seconds
	Members      []Member `json:"members"`
	Callers      []Caller `json:"callers"`
}

// Member is one agent line under a queue header
type Member struct {
	Name         string       `json:"name,omitempty"`
	Interface    string       `json:"interface"`
	Extension    string       `json:"extension"`
	RawStatus    string       `json:"rawStatus"`
	Status       MemberStatus `json:"status"`
	Available    bool         `json:"available"`
	Paused       bool         `json:"paused"`
	PauseReason  string       `json:"pauseReason,omitempty"`
	InCall       bool         `json:"inCall"`
	Dynamic      bool         `json:"dynamic"`
	CallsTaken   int          `json:"callsTaken"`
	LastCallSecs int          `json:"lastCallSecs,omitempty"`
}

// Caller is a waiting call under a queue header
type Caller struct {
	Position int    `json:"position"`
	Channel  string `json:"channel"`
	Wait     int    `json:"wait"` // seconds
	Priority int    `json:"priority"`
}

// LongestWait returns the longest wait among the queue's callers
func (q QueueSummary) LongestWait() int {
	longest := 0
	for _, c := range q.Callers {
		if c.Wait > longest {
			longest = c.Wait
		}
	}
	return longest
}

var (
	headerRe   = regexp.MustCompile(`^(\S+) has (\d+) calls? \(max ([^)]*)\) in '([^']+)' strategy`)
	holdRe     = regexp.MustCompile(`(\d+)s holdtime`)
	talkRe     = regexp.MustCompile(`(\d+)s talktime`)
	completeRe = regexp.MustCompile(`\bC:(\d+)`)
	abandonRe  = regexp.MustCompile(`\bA:(\d+)`)
	slRe       = regexp.MustCompile(`\bSL:([\d.]+)%`)
	withinRe   = regexp.MustCompile(`within (\d+)s`)

	groupRe    = regexp.MustCompile(`\(([^()]*)\)`)
	takenRe    = regexp.MustCompile(`has taken (\d+) calls?`)
	lastCallRe = regexp.MustCompile(`last was (\d+) secs? ago`)
	callerRe   = regexp.MustCompile(`^(\d+)\. (\S+) \(wait: (\d+):(\d{2})(?::(\d{2}))?, prio: (-?\d+)\)`)
)

// ParseQueues scans a `queue show` dump. A header line starts a new queue;
// member and caller lines attach to the most recent header. Lines matching
// nothing are skipped and counted. A dump without headers yields no queues.
func ParseQueues(dump string) ([]QueueSummary, int) {
	var (
		queues  []QueueSummary
		current *QueueSummary
		skipped int
	)

	scanner := bufio.NewScanner(strings.NewReader(dump))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if q, ok := parseHeader(line); ok {
			queues = append(queues, q)
			current = &queues[len(queues)-1]
			continue
		}

		if isStructural(line) {
			continue
		}

		if current == nil {
			skipped++
			continue
		}

		if strings.Contains(line, "has taken") {
			if m, ok := parseMember(line); ok {
				current.Members = append(current.Members, m)
				continue
			}
		}

		if c, ok := parseCaller(line); ok {
			current.Callers = append(current.Callers, c)
			continue
		}

		skipped++
	}
	return queues, skipped
}

func isStructural(line string) bool {
	switch strings.ToLower(strings.TrimSuffix(line, ":")) {
	case "members", "callers", "no members", "no callers":
		return true
	}
	return false
}

func parseHeader(line string) (QueueSummary, bool) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return QueueSummary{}, false
	}
	q := QueueSummary{
		Name:         m[1],
		CallsWaiting: atoi(m[2]),
		MaxCallers:   m[3],
		Strategy:     m[4],
		HoldTime:     firstInt(holdRe, line),
		TalkTime:     firstInt(talkRe, line),
		Completed:    firstInt(completeRe, line),
		Abandoned:    firstInt(abandonRe, line),
		SLWindow:     firstInt(withinRe, line),
	}
	if sl := slRe.FindStringSubmatch(line); sl != nil {
		q.SLPercent, _ = strconv.ParseFloat(sl[1], 64)
	}
	return q, true
}

func parseMember(line string) (Member, bool) {
	idx := strings.Index(line, " has taken")
	head, tail := line[:idx], line[idx:]

	lead := head
	if p := strings.Index(head, " ("); p >= 0 {
		lead = head[:p]
	}
	lead = strings.TrimSpace(lead)
	if lead == "" {
		return Member{}, false
	}

	m := Member{Interface: lead}
	var groups []string
	for _, g := range groupRe.FindAllStringSubmatch(head, -1) {
		groups = append(groups, strings.TrimSpace(g[1]))
	}
	// "Alice (PJSIP/101) (...)" names the member before its interface
	if len(groups) > 0 && !strings.Contains(lead, "/") && strings.Contains(groups[0], "/") {
		m.Name = lead
		m.Interface = groups[0]
		groups = groups[1:]
	}
	m.Extension = extensionOf(m.Interface)

	classify(&m, groups)

	if t := takenRe.FindStringSubmatch(tail); t != nil {
		m.CallsTaken = atoi(t[1])
	}
	if l := lastCallRe.FindStringSubmatch(tail); l != nil {
		m.LastCallSecs = atoi(l[1])
	}
	return m, true
}

func parseCaller(line string) (Caller, bool) {
	m := callerRe.FindStringSubmatch(line)
	if m == nil {
		return Caller{}, false
	}
	wait := atoi(m[3])*60 + atoi(m[4])
	if m[5] != "" {
		// h:mm:ss
		wait = atoi(m[3])*3600 + atoi(m[4])*60 + atoi(m[5])
	}
	return Caller{
		Position: atoi(m[1]),
		Channel:  m[2],
		Wait:     wait,
		Priority: atoi(m[6]),
	}, true
}

// extensionOf strips the technology prefix and any dial suffix:
// PJSIP/101 -> 101, Local/101@from-queue/n -> 101
func extensionOf(iface string) string {
	ext := iface
	if i := strings.Index(ext, "/"); i >= 0 {
		ext = ext[i+1:]
	}
	if i := strings.IndexAny(ext, "@/"); i >= 0 {
		ext = ext[:i]
	}
	return ext
}

func firstInt(re *regexp.Regexp, s string) int {
	if m := re.FindStringSubmatch(s); m != nil {
		return atoi(m[1])
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
