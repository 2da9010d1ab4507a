package store

import "sort"

// TaskDepState is the pure-function dependency summary for one task
// (spec §4.3 "Dependency state").
type TaskDepState struct {
	TaskID     string
	DependsOn  []string
	Missing    []string
	Incomplete []string
	Ready      bool
}

// DependencyState computes TaskDepState for every task in tasks plus
// any cycles found in the declared depends_on graph. Callers should
// cache the result keyed by Checksum(tasks) per spec §4.3.
func DependencyState(tasks []Task) (map[string]TaskDepState, []Cycle) {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	states := make(map[string]TaskDepState, len(tasks))
	for _, t := range tasks {
		deps := normalizeDeps(t.DependsOn)
		var missing, incomplete []string
		for _, dep := range deps {
			depTask, ok := byID[dep]
			if !ok {
				missing = append(missing, dep)
				continue
			}
			if depTask.Status != StatusDone || !depTask.Commit.Valid() {
				incomplete = append(incomplete, dep)
			}
		}
		states[t.ID] = TaskDepState{
			TaskID:     t.ID,
			DependsOn:  deps,
			Missing:    missing,
			Incomplete: incomplete,
			Ready:      len(missing) == 0 && len(incomplete) == 0,
		}
	}

	return states, findCycles(tasks)
}

func normalizeDeps(deps []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range deps {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Cycle is one detected dependency cycle, expressed as the ordered
// sequence of task ids that form it (first id repeated at the end).
type Cycle struct {
	Path []string
}

// findCycles runs a DFS with a visiting stack over the depends_on
// graph, reporting every cycle discovered (spec §4.3 "Detect cycles via
// a DFS with a visiting stack; report cycles as warnings").
func findCycles(tasks []Task) []Cycle {
	graph := make(map[string][]string, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		graph[t.ID] = normalizeDeps(t.DependsOn)
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(tasks))
	var stack []string
	var cycles []Cycle

	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		stack = append(stack, id)

		for _, dep := range graph[id] {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case visiting:
				// Found a back-edge: the cycle is the stack slice from
				// dep's first occurrence to the current node, plus dep
				// again to close the loop.
				for i, s := range stack {
					if s == dep {
						path := append([]string{}, stack[i:]...)
						path = append(path, dep)
						cycles = append(cycles, Cycle{Path: path})
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, id := range ids {
		if state[id] == unvisited {
			visit(id)
		}
	}

	return cycles
}
