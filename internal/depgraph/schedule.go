package depgraph

import (
	"sort"
	"time"
)

// ScheduleEntry is one node's placement in a computed schedule.
type ScheduleEntry struct {
	ID    string
	Start float64 // hours from epoch-of-schedule
	End   float64
	Hours float64
}

// Schedule is the full output of a CPM pass: per-node placement plus the
// critical path (the longest end-to-end chain) and summary envelope.
type Schedule struct {
	Entries       map[string]ScheduleEntry
	CriticalPath  []string
	TotalHours    float64
	CriticalHours float64
}

// EffortResolver resolves a Task's symbolic effort field to hours, falling
// back to a configured default for missing/unknown values.
type EffortResolver func(effort string) float64

// TheoreticalSchedule computes earliest-start-time CPM over the DAG,
// ignoring actual timestamps: start(t) = max(end(b) for b in blockers),
// end(t) = start(t) + hours(t). Requires the graph to be acyclic; callers
// should run DetectCycles first.
func (g *Graph) TheoreticalSchedule(resolve EffortResolver) Schedule {
	hours := make(map[string]float64, len(g.Nodes))
	for id, node := range g.Nodes {
		hours[id] = resolve(node.Effort)
	}

	order := topoOrder(g)
	entries := make(map[string]ScheduleEntry, len(g.Nodes))
	for _, id := range order {
		node := g.Nodes[id]
		var start float64
		for _, b := range node.BlockedBy {
			if be, ok := entries[b]; ok && be.End > start {
				start = be.End
			}
		}
		entries[id] = ScheduleEntry{ID: id, Start: start, End: start + hours[id], Hours: hours[id]}
	}

	return summarize(g, entries)
}

// RealSchedule uses actual started_at/done_at where present, falling back
// to the theoretical placement (offset in hours from the earliest observed
// start) for not-yet-started nodes.
func (g *Graph) RealSchedule(resolve EffortResolver, now time.Time) Schedule {
	theoretical := g.TheoreticalSchedule(resolve)

	earliest := now
	for _, node := range g.Nodes {
		if node.StartedAt != nil && node.StartedAt.Before(earliest) {
			earliest = *node.StartedAt
		}
	}

	entries := make(map[string]ScheduleEntry, len(g.Nodes))
	for id, node := range g.Nodes {
		hours := resolve(node.Effort)
		switch {
		case node.StartedAt != nil && node.DoneAt != nil:
			start := node.StartedAt.Sub(earliest).Hours()
			end := node.DoneAt.Sub(earliest).Hours()
			entries[id] = ScheduleEntry{ID: id, Start: start, End: end, Hours: end - start}
		case node.StartedAt != nil:
			start := node.StartedAt.Sub(earliest).Hours()
			entries[id] = ScheduleEntry{ID: id, Start: start, End: start + hours, Hours: hours}
		default:
			entries[id] = theoretical.Entries[id]
		}
	}
	return summarize(g, entries)
}

func summarize(g *Graph, entries map[string]ScheduleEntry) Schedule {
	var totalHours float64
	var latestEnd float64
	var latestID string
	for id, e := range entries {
		totalHours += e.Hours
		if e.End > latestEnd {
			latestEnd = e.End
			latestID = id
		}
	}

	var path []string
	cur := latestID
	for cur != "" {
		path = append([]string{cur}, path...)
		entry := entries[cur]
		var next string
		var bestEnd float64 = -1
		for _, b := range g.Nodes[cur].BlockedBy {
			if be, ok := entries[b]; ok && be.End <= entry.Start && be.End > bestEnd {
				bestEnd = be.End
				next = b
			}
		}
		cur = next
	}

	var criticalHours float64
	for _, id := range path {
		criticalHours += entries[id].Hours
	}

	return Schedule{Entries: entries, CriticalPath: path, TotalHours: totalHours, CriticalHours: criticalHours}
}

// topoOrder returns a topological ordering of the graph's nodes assuming it
// is acyclic (Kahn's algorithm). Nodes participating in a cycle are simply
// appended in map order at the end; callers needing a hard guarantee should
// check DetectCycles first.
func topoOrder(g *Graph) []string {
	indegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		indegree[id] = 0
	}
	for _, node := range g.Nodes {
		for range node.BlockedBy {
			indegree[node.ID]++
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dep := range g.Nodes[id].Dependents {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
		sort.Strings(queue)
	}

	if len(order) < len(g.Nodes) {
		seen := make(map[string]bool, len(order))
		for _, id := range order {
			seen[id] = true
		}
		for id := range g.Nodes {
			if !seen[id] {
				order = append(order, id)
			}
		}
	}
	return order
}
