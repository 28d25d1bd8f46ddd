package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/jobflow/pkg/schema"
)

// Link is a directed dependency between two node ids.
type Link struct {
	From string
	To   string
}

// CheckDAG performs graph analysis over nodes and links: cycle detection
// (Kahn's algorithm) and reachability from roots (BFS). When roots is empty,
// every node without incoming links is a root.
func CheckDAG(nodes []string, links []Link, roots []string) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make(map[string]bool, len(nodes))
	for _, id := range nodes {
		ids[id] = true
	}

	forward := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	seen := make(map[Link]bool, len(links))
	for _, l := range links {
		if !ids[l.From] || !ids[l.To] || seen[l] {
			continue // dangling refs are reported by the semantic stage
		}
		seen[l] = true
		forward[l.From] = append(forward[l.From], l.To)
		inDegree[l.To]++
	}

	queue := make([]string, 0, len(nodes))
	for id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	if len(roots) == 0 {
		roots = append([]string(nil), queue...)
	}

	remaining := make(map[string]int, len(inDegree))
	for id, d := range inDegree {
		remaining[id] = d
	}
	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range forward[node] {
			remaining[next]--
			if remaining[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(ids) {
		result.AddError("edges", schema.ErrCodeCycle, "flow contains a cycle")
		return result
	}

	reachable := make(map[string]bool, len(ids))
	bfs := make([]string, 0, len(roots))
	for _, r := range roots {
		if ids[r] && !reachable[r] {
			reachable[r] = true
			bfs = append(bfs, r)
		}
	}
	for len(bfs) > 0 {
		node := bfs[0]
		bfs = bfs[1:]
		for _, next := range forward[node] {
			if !reachable[next] {
				reachable[next] = true
				bfs = append(bfs, next)
			}
		}
	}

	for _, id := range nodes {
		if !reachable[id] {
			result.AddWarning(fmt.Sprintf("nodes[%s]", id), schema.ErrCodeValidation,
				fmt.Sprintf("node %q is unreachable from the start node", id))
		}
	}

	return result
}
