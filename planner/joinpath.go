package planner

import (
	"sort"

	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/semerr"
)

// ResolvedJoin is one edge the planner must render as a SQL JOIN clause
// to connect a cube into the query, expressed as a hop from an already
// placed cube to a newly reached one.
type ResolvedJoin struct {
	FromCube string
	ToCube   string
	Join     model.CubeJoin // the edge declaration, owned by FromCube
	Depth    int            // BFS distance from the primary cube
}

// ResolveJoinPaths runs a breadth-first search over the directed graph
// whose edges are each cube's Joins map (spec §4.4), starting at
// primary, and returns the ordered list of edges needed to reach every
// cube in needed. Edges are returned in BFS-depth order so a caller can
// apply them to a FROM clause without forward-referencing an alias that
// hasn't been joined yet.
//
// Ties between equal-length paths are broken lexicographically: at each
// BFS layer, a cube's neighbors are visited in sorted name order, so the
// first visit — and therefore the recorded predecessor — is always the
// one reachable via the lexicographically smallest chain of
// intermediate cube names (spec §4.4 "deterministic tie-break").
func ResolveJoinPaths(reg *model.Registry, primary string, needed []string) ([]ResolvedJoin, error) {
	type edge struct {
		from, to string
		join     model.CubeJoin
		depth    int
	}

	visited := map[string]bool{primary: true}
	var order []string // cubes in first-visit (BFS) order, excluding primary
	predecessor := map[string]edge{}

	queue := []string{primary}
	depth := map[string]int{primary: 0}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		cube := reg.Get(cur)
		if cube == nil {
			continue
		}

		neighbors := sortedJoinTargets(cube.Joins)
		for _, targetName := range neighbors {
			if visited[targetName] {
				continue
			}
			visited[targetName] = true
			predecessor[targetName] = edge{
				from:  cur,
				to:    targetName,
				join:  cube.Joins[targetName],
				depth: depth[cur] + 1,
			}
			depth[targetName] = depth[cur] + 1
			order = append(order, targetName)
			queue = append(queue, targetName)
		}
	}

	// Collect every edge on the union of shortest paths from primary to
	// each needed cube, deduped, in first-reached (BFS) order.
	usedEdge := map[string]bool{} // keyed by "to" cube name
	var result []ResolvedJoin

	needSorted := append([]string(nil), needed...)
	sort.Strings(needSorted)

	for _, n := range needSorted {
		if n == primary {
			continue
		}
		if !visited[n] {
			return nil, semerr.NewJoinResolutionError(primary, n)
		}
		// Walk predecessors from n back to primary, marking every edge
		// on the path as used.
		cursor := n
		for cursor != primary {
			e, ok := predecessor[cursor]
			if !ok {
				return nil, semerr.NewJoinResolutionError(primary, n)
			}
			usedEdge[e.to] = true
			cursor = e.from
		}
	}

	for _, to := range order {
		if !usedEdge[to] {
			continue
		}
		e := predecessor[to]
		result = append(result, ResolvedJoin{
			FromCube: e.from,
			ToCube:   e.to,
			Join:     e.join,
			Depth:    e.depth,
		})
	}
	return result, nil
}

func sortedJoinTargets(joins map[string]model.CubeJoin) []string {
	names := make([]string, 0, len(joins))
	for name := range joins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
