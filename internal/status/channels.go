package status

import (
	"bufio"
	"strings"
)

// Channel is one active channel from a concise channel listing
type Channel struct {
	ID          string `json:"id"`
	Context     string `json:"context"`
	Extension   string `json:"extension"`
	State       string `json:"state"`
	Application string `json:"application"`
	Data        string `json:"data,omitempty"`
	CallerID    string `json:"callerId"`
	Duration    int    `json:"duration"` // seconds
	BridgedTo   string `json:"bridgedTo,omitempty"`
	UniqueID    string `json:"uniqueId,omitempty"`
}

// Owner returns the endpoint part of the channel name: PJSIP/101-0000002a -> PJSIP/101
func (c Channel) Owner() string {
	if i := strings.LastIndex(c.ID, "-"); i > 0 {
		return c.ID[:i]
	}
	return c.ID
}

// concise field order: channel!context!exten!prio!state!app!data!callerid!
// accountcode!peeraccount!amaflags!duration!bridged!uniqueid
const minConciseFields = 12

// ParseChannels scans `core show channels concise`. Lines with too few
// fields are skipped and counted.
func ParseChannels(dump string) ([]Channel, int) {
	var (
		channels []Channel
		skipped  int
	)

	scanner := bufio.NewScanner(strings.NewReader(dump))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		f := strings.Split(line, "!")
		if len(f) < minConciseFields || f[0] == "" {
			skipped++
			continue
		}

		ch := Channel{
			ID:          f[0],
			Context:     f[1],
			Extension:   f[2],
			State:       f[4],
			Application: f[5],
			Data:        f[6],
			CallerID:    f[7],
			Duration:    atoi(f[11]),
		}
		if len(f) > 12 && f[12] != "(None)" {
			ch.BridgedTo = f[12]
		}
		if len(f) > 13 {
			ch.UniqueID = f[13]
		}
		channels = append(channels, ch)
	}
	return channels, skipped
}
