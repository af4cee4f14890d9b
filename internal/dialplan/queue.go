package dialplan

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/status"
	"github.com/dennisdiepolder/callctl/internal/types"
)

var (
	queueNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	ifaceRe     = regexp.MustCompile(`^[A-Za-z0-9]+/[A-Za-z0-9_.@+\-]+$`)
	memberName  = regexp.MustCompile(`^[A-Za-z0-9 _.'-]*$`)
)

// ValidQueueName reports whether name can be used in commands and config
func ValidQueueName(name string) bool {
	return queueNameRe.MatchString(name)
}

// ValidInterface reports whether iface looks like Tech/resource
func ValidInterface(iface string) bool {
	return ifaceRe.MatchString(iface)
}

// CompileQueue renders a queues.conf section with static members in input order
func CompileQueue(q types.Queue, members []types.QueueMember) (Artifact, error) {
	const op = "compile queue"
	if !ValidQueueName(q.Name) {
		return Artifact{}, apperr.Validation(op, "invalid queue name %q", q.Name)
	}
	strategy := q.Strategy
	if strategy == "" {
		strategy = types.QueueRingAll
	}
	if !strategy.Valid() {
		return Artifact{}, apperr.Validation(op, "queue %s: unknown strategy %q", q.Name, q.Strategy)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "; generated by callctl, changes are overwritten on the next apply\n")
	fmt.Fprintf(&b, "[%s]\n", q.Name)
	fmt.Fprintf(&b, "strategy = %s\n", strategy)
	if q.Timeout > 0 {
		fmt.Fprintf(&b, "timeout = %d\n", q.Timeout)
	}
	if q.Retry > 0 {
		fmt.Fprintf(&b, "retry = %d\n", q.Retry)
	}
	if q.SLThreshold > 0 {
		fmt.Fprintf(&b, "servicelevel = %d\n", q.SLThreshold)
	}
	fmt.Fprintf(&b, "maxlen = %d\n", q.MaxLen)
	b.WriteString("ringinuse = no\n")

	for _, m := range members {
		if !m.Enabled {
			continue
		}
		if !ValidInterface(m.Interface) || !memberName.MatchString(m.Name) {
			return Artifact{}, apperr.Validation(op, "queue %s: invalid member %q", q.Name, m.Interface)
		}
		if m.Name != "" {
			fmt.Fprintf(&b, "member => %s,%d,%s\n", m.Interface, m.Penalty, m.Name)
		} else {
			fmt.Fprintf(&b, "member => %s,%d\n", m.Interface, m.Penalty)
		}
	}

	return Artifact{
		Name:   "queue-" + q.Name + ".conf",
		Kind:   "queue",
		Module: "app_queue.so",
		Body:   b.Bytes(),
	}, nil
}

// MemberPlan is the set of live commands that brings a queue's dynamic
// membership in line with its definition
type MemberPlan struct {
	Queue  string
	Add    []types.QueueMember
	Remove []string
}

// Empty reports whether nothing needs to change
func (p MemberPlan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// PlanMembers diffs desired members against what the switch reports.
// Only dynamic members are ever removed; static ones belong to the config file.
func PlanMembers(queue string, desired []types.QueueMember, live []status.Member) MemberPlan {
	plan := MemberPlan{Queue: queue}

	present := make(map[string]bool, len(live))
	for _, m := range live {
		present[m.Interface] = true
	}
	wanted := make(map[string]bool, len(desired))
	for _, m := range desired {
		if !m.Enabled {
			continue
		}
		wanted[m.Interface] = true
		if !present[m.Interface] {
			plan.Add = append(plan.Add, m)
		}
	}
	for _, m := range live {
		if m.Dynamic && !wanted[m.Interface] {
			plan.Remove = append(plan.Remove, m.Interface)
		}
	}
	return plan
}
