package planner

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError is returned when the DAG contains a cycle and topological
// sorting is not possible.
type CycleError struct {
	Stems []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected among tables: %s", strings.Join(e.Stems, ", "))
}

// TopoSort performs a topological sort on the DAG using Kahn's algorithm.
// It returns stems grouped by level: level 0 holds tables that reference
// nothing, level N holds tables whose dependencies are all in earlier
// levels. Each level is sorted alphabetically.
func TopoSort(dag *DAG) ([][]string, error) {
	inDegree := make(map[string]int, len(dag.Nodes))
	for stem, node := range dag.Nodes {
		inDegree[stem] = len(node.Reverse)
	}

	var queue []string
	for stem, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, stem)
		}
	}
	sort.Strings(queue)

	var levels [][]string
	processed := 0

	for len(queue) > 0 {
		level := make([]string, len(queue))
		copy(level, queue)
		levels = append(levels, level)
		processed += len(level)

		var nextQueue []string
		for _, stem := range queue {
			for neighbor := range dag.Nodes[stem].Forward {
				inDegree[neighbor]--
				if inDegree[neighbor] == 0 {
					nextQueue = append(nextQueue, neighbor)
				}
			}
		}
		sort.Strings(nextQueue)
		queue = nextQueue
	}

	if processed != len(dag.Nodes) {
		var cycle []string
		for stem, deg := range inDegree {
			if deg > 0 {
				cycle = append(cycle, stem)
			}
		}
		sort.Strings(cycle)
		return nil, &CycleError{Stems: cycle}
	}

	return levels, nil
}
