// Package ordering transforms a flat list of parsed tasks into a closed,
// well-ordered list: it synthesizes virtual marker tasks for groups and
// provided features, resolves "before" edges into "after" edges, detects
// dependency cycles, and produces the spawn order the supervisor uses to
// start its drivers.
//
// Grounded in the original implementation's core/src/ordering.rs
// (construct_markers, resolve_before, sort), translated from its
// topological_sort-crate usage to a hand-rolled Kahn's algorithm so the
// tie-breaking rule (insertion order among ready nodes) is explicit.
package ordering

import (
	"fmt"

	"github.com/tinythings/alfad/internal/config"
)

// SynthesizeMarkers adds one group::<name> marker per distinct Group value
// referenced by configs (After = union of member task names) and one
// feature::<tag> marker per distinct Provides tag (After = {producer}).
// If two tasks provide the same feature, the later one (in input order)
// overrides the earlier and a warning is returned; this is not fatal.
func SynthesizeMarkers(configs []config.TaskConfig) ([]config.TaskConfig, []error) {
	var warnings []error

	groups := map[string]*config.TaskConfig{}
	groupOrder := []string{}
	for _, c := range configs {
		if c.Group == "" {
			continue
		}
		name := config.GroupMarkerPrefix + c.Group
		m, ok := groups[name]
		if !ok {
			m = &config.TaskConfig{Name: name, Payload: config.Payload{Kind: config.PayloadMarker}}
			groups[name] = m
			groupOrder = append(groupOrder, name)
		}
		m.After = append(m.After, c.Name)
	}

	features := map[string]*config.TaskConfig{}
	featureOrder := []string{}
	featureProvider := map[string]string{}
	for _, c := range configs {
		for _, tag := range c.Provides {
			name := config.FeatureMarkerPrefix + tag
			if prev, exists := featureProvider[name]; exists {
				warnings = append(warnings, fmt.Errorf("overriding %s, already provided by %s", name, prev))
			} else {
				featureOrder = append(featureOrder, name)
			}
			features[name] = &config.TaskConfig{
				Name:    name,
				Payload: config.Payload{Kind: config.PayloadMarker},
				After:   []string{c.Name},
			}
			featureProvider[name] = c.Name
		}
	}

	out := append([]config.TaskConfig(nil), configs...)
	for _, name := range groupOrder {
		out = append(out, *groups[name])
	}
	for _, name := range featureOrder {
		out = append(out, *features[name])
	}
	return out, warnings
}

// ResolveBefore turns before[A]=[...B...] style edges (A wants to run
// before B, keyed by A) into After edges: for every task A with a recorded
// Before edge to B, A is appended to B.After. If B is absent from configs,
// the edge is dropped and a warning returned; A still runs.
func ResolveBefore(configs []config.TaskConfig, before map[string][]string) ([]config.TaskConfig, []error) {
	var warnings []error
	index := make(map[string]int, len(configs))
	for i, c := range configs {
		index[c.Name] = i
	}

	out := append([]config.TaskConfig(nil), configs...)
	for source, targets := range before {
		for _, target := range targets {
			i, ok := index[target]
			if !ok {
				warnings = append(warnings, fmt.Errorf("%s tried to run before %s, which does not exist (%s will still run)", source, target, source))
				continue
			}
			out[i].After = append(out[i].After, source)
		}
	}
	return out, warnings
}

// Validate detects cycles by DFS over the union of After and With edges.
// It returns the set of task names participating in a cycle (cyclic tasks
// are retained by the caller, just placed at the tail of the spawn order)
// and warnings describing each cycle found.
func Validate(configs []config.TaskConfig) (map[string]bool, []error) {
	index := make(map[string]config.TaskConfig, len(configs))
	for _, c := range configs {
		index[c.Name] = c
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(configs))
	cyclic := map[string]bool{}
	var warnings []error

	var stack []string
	var visit func(name string)
	visit = func(name string) {
		color[name] = gray
		stack = append(stack, name)
		c, ok := index[name]
		if ok {
			for _, dep := range edgesOf(c) {
				if _, exists := index[dep]; !exists {
					continue
				}
				switch color[dep] {
				case white:
					visit(dep)
				case gray:
					// Found a back-edge: everything on the stack from dep
					// onward is part of a cycle.
					cycleStart := indexOf(stack, dep)
					cycleMembers := append([]string(nil), stack[cycleStart:]...)
					for _, m := range cycleMembers {
						cyclic[m] = true
					}
					warnings = append(warnings, fmt.Errorf("dependency cycle detected: %v", append(cycleMembers, dep)))
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
	}

	for _, c := range configs {
		if color[c.Name] == white {
			visit(c.Name)
		}
	}
	return cyclic, warnings
}

func edgesOf(c config.TaskConfig) []string {
	edges := make([]string, 0, len(c.After)+len(c.With))
	edges = append(edges, c.After...)
	edges = append(edges, c.With...)
	return edges
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return 0
}

// TopologicalSort returns configs reordered for spawn: tasks with no After
// and no With edges first (in input order), then a Kahn-order pass over
// the remaining acyclic portion using After∪With edges, then markers, then
// whatever is left over (tasks in a dependency cycle, retained at the
// tail). Edges to names absent from the config set are ignored for
// ordering, so a dependent of a missing name is placed by its other edges;
// it is the supervisor that keeps such a task in Waiting.
//
// Ties among ready nodes are broken by insertion order, matching the
// original's use of a stable topological_sort crate over a HashMap whose
// iteration the original does not actually guarantee ordered — this
// implementation makes the tie-break an explicit guarantee instead.
func TopologicalSort(configs []config.TaskConfig) []config.TaskConfig {
	present := make(map[string]bool, len(configs))
	for _, c := range configs {
		present[c.Name] = true
	}

	remaining := make(map[string]config.TaskConfig, len(configs))
	order := make([]string, 0, len(configs)) // preserves input order for remaining names
	for _, c := range configs {
		remaining[c.Name] = c
		order = append(order, c.Name)
	}

	var result []config.TaskConfig
	take := func(name string) {
		if c, ok := remaining[name]; ok {
			result = append(result, c)
			delete(remaining, name)
		}
	}

	// Pass 1: tasks with no dependencies at all start first.
	var noDeps []string
	for _, name := range order {
		c := remaining[name]
		if len(c.After) == 0 && len(c.With) == 0 && !c.Payload.IsMarker() {
			noDeps = append(noDeps, name)
		}
	}
	for _, name := range noDeps {
		take(name)
	}

	// Pass 2: Kahn's algorithm over the remaining non-marker, non-cyclic
	// portion. Edges to names outside the config set, or to markers, are
	// ignored for dependency-counting purposes but markers are excluded
	// from this pass entirely (they are appended in pass 3).
	cyclic, _ := Validate(configs)

	indeg := map[string]int{}
	adj := map[string][]string{} // dep -> dependents
	var ready []string
	for name, c := range remaining {
		if c.Payload.IsMarker() || cyclic[name] {
			continue
		}
		n := 0
		for _, dep := range edgesOf(c) {
			if !present[dep] || cyclic[dep] {
				continue
			}
			if _, stillRemaining := remaining[dep]; !stillRemaining {
				continue
			}
			if remaining[dep].Payload.IsMarker() {
				continue
			}
			n++
			adj[dep] = append(adj[dep], name)
		}
		indeg[name] = n
		if n == 0 {
			ready = append(ready, name)
		}
	}
	// Sort initial ready set by original insertion order for a deterministic
	// tie-break.
	ready = sortByOrder(ready, order)

	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		if _, ok := remaining[name]; !ok {
			continue
		}
		if remaining[name].Payload.IsMarker() || cyclic[name] {
			continue
		}
		take(name)
		var newlyReady []string
		for _, dependent := range adj[name] {
			if _, ok := indeg[dependent]; !ok {
				continue
			}
			indeg[dependent]--
			if indeg[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		newlyReady = sortByOrder(newlyReady, order)
		ready = append(ready, newlyReady...)
		ready = sortByOrder(ready, order)
	}

	// Pass 3: markers, in input order.
	for _, name := range order {
		if c, ok := remaining[name]; ok && c.Payload.IsMarker() && !cyclic[name] {
			take(name)
		}
	}

	// Pass 4: everything left over — the tasks in a dependency cycle —
	// appended in input order so they still get a driver and can be
	// force-started.
	for _, name := range order {
		take(name)
	}

	return result
}

func sortByOrder(names []string, order []string) []string {
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	out := append([]string(nil), names...)
	// insertion sort is fine here: these lists are small (ready-set fanout)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && pos[out[j-1]] > pos[out[j]]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
