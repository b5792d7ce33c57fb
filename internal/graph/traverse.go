package graph

import (
	"context"
	"sort"

	"github.com/khoitran3172/todo-list/internal/types"
)

// reaches reports whether target is reachable from start by following
// dependency edges. The visited set bounds the walk to O(V+E) and keeps it
// finite on a graph that already contains a cycle.
func (e *Engine) reaches(ctx context.Context, start, target int64) (bool, error) {
	visited := map[int64]bool{}
	stack := []int64{start}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current == target {
			return true, nil
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		next, err := e.store.LoadDirectDependencies(ctx, current)
		if err != nil {
			return false, types.WrapStore("load dependencies", err)
		}
		for _, id := range next {
			if !visited[id] {
				stack = append(stack, id)
			}
		}
	}
	return false, nil
}

// closure returns every task reachable from direct, excluding direct itself
// and origin, in breadth-first discovery order.
func (e *Engine) closure(ctx context.Context, origin int64, direct []int64) ([]int64, error) {
	visited := map[int64]bool{origin: true}
	for _, id := range direct {
		visited[id] = true
	}

	queue := append([]int64(nil), direct...)
	var found []int64

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]

		next, err := e.store.LoadDirectDependencies(ctx, current)
		if err != nil {
			return nil, types.WrapStore("load dependencies", err)
		}
		for _, id := range next {
			if visited[id] {
				continue
			}
			visited[id] = true
			found = append(found, id)
			queue = append(queue, id)
		}
	}
	return found, nil
}

// findCycle runs an iterative three-color DFS over edges and returns the
// first cycle found, closed on its starting node.
func findCycle(edges []types.Dependency) []int64 {
	const (
		white = iota
		gray
		black
	)

	adj := make(map[int64][]int64)
	for _, e := range edges {
		adj[e.TaskID] = append(adj[e.TaskID], e.DependsOnID)
	}

	// Sort roots for deterministic detection.
	roots := make([]int64, 0, len(adj))
	for id := range adj {
		roots = append(roots, id)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	color := make(map[int64]int)

	type frame struct {
		node int64
		next int
	}

	for _, root := range roots {
		if color[root] != white {
			continue
		}

		path := []frame{{node: root}}
		color[root] = gray

		for len(path) > 0 {
			top := &path[len(path)-1]
			children := adj[top.node]

			if top.next >= len(children) {
				color[top.node] = black
				path = path[:len(path)-1]
				continue
			}

			child := children[top.next]
			top.next++

			switch color[child] {
			case gray:
				// Reconstruct from the first occurrence of child on the path.
				var cycle []int64
				for i, f := range path {
					if f.node == child {
						for _, g := range path[i:] {
							cycle = append(cycle, g.node)
						}
						break
					}
				}
				return append(cycle, child)
			case white:
				color[child] = gray
				path = append(path, frame{node: child})
			}
		}
	}
	return nil
}
