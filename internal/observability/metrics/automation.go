package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Automation counters track the rebalancing pipeline: how many actions were
// evaluated per trigger, and how each one ended.

type actionKey struct {
	trigger string
	result  string
}

// Canonical result labels for ObserveAction.
const (
	ResultRebalanced = "rebalanced"
	ResultNoAction   = "no_action"
	ResultFailed     = "failed"
)

type automationStats struct {
	mu       sync.Mutex
	actions  map[actionKey]uint64
	events   uint64
	dropped  uint64
	lastGap  uint64
	gapKnown bool
}

var automationCollector = &automationStats{
	actions: make(map[actionKey]uint64),
}

// ObserveAction records the result of one automation run.
func ObserveAction(trigger, result string) {
	c := automationCollector
	c.mu.Lock()
	c.actions[actionKey{trigger: trigger, result: result}]++
	c.mu.Unlock()
}

// ObserveEvent records one event consumed from the delivery channel.
// Dropped events are those with no matching subscription.
func ObserveEvent(dropped bool) {
	c := automationCollector
	c.mu.Lock()
	c.events++
	if dropped {
		c.dropped++
	}
	c.mu.Unlock()
}

// ObserveRateGap records the rate gap seen at the latest evaluation,
// in basis points.
func ObserveRateGap(gap uint64) {
	c := automationCollector
	c.mu.Lock()
	c.lastGap = gap
	c.gapKnown = true
	c.mu.Unlock()
}

func renderAutomation() string {
	c := automationCollector
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]actionKey, 0, len(c.actions))
	for key := range c.actions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].trigger != keys[j].trigger {
			return keys[i].trigger < keys[j].trigger
		}
		return keys[i].result < keys[j].result
	})

	var builder strings.Builder
	builder.WriteString("# HELP nexus_automation_actions_total Total automation runs by trigger and result.\n")
	builder.WriteString("# TYPE nexus_automation_actions_total counter\n")
	for _, key := range keys {
		builder.WriteString(fmt.Sprintf("nexus_automation_actions_total{trigger=%q,result=%q} %d\n",
			escape(key.trigger), escape(key.result), c.actions[key]))
	}

	builder.WriteString("# HELP nexus_events_consumed_total Total events consumed from the delivery channel.\n")
	builder.WriteString("# TYPE nexus_events_consumed_total counter\n")
	builder.WriteString(fmt.Sprintf("nexus_events_consumed_total %d\n", c.events))

	builder.WriteString("# HELP nexus_events_dropped_total Events consumed with no matching subscription.\n")
	builder.WriteString("# TYPE nexus_events_dropped_total counter\n")
	builder.WriteString(fmt.Sprintf("nexus_events_dropped_total %d\n", c.dropped))

	if c.gapKnown {
		builder.WriteString("# HELP nexus_rate_gap_basis_points Rate gap observed at the latest evaluation.\n")
		builder.WriteString("# TYPE nexus_rate_gap_basis_points gauge\n")
		builder.WriteString(fmt.Sprintf("nexus_rate_gap_basis_points %d\n", c.lastGap))
	}

	return builder.String()
}
