package ecschema

import (
	"errors"
	"fmt"
	"sort"
)

// topoSort returns node indices so that every node follows its dependencies.
//
// depsFn(i) yields indices that must come before i. When several nodes are
// ready the smallest index wins, so declaration order breaks ties. A cycle
// yields an error naming one node on it.
func topoSort(n int, depsFn func(i int) []int) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}

	indeg := make([]int, n)
	out := make([][]int, n)

	for i := range n {
		for _, d := range depsFn(i) {
			if d < 0 || d >= n {
				return nil, fmt.Errorf("dependency index out of range: %d depends on %d", i, d)
			}

			indeg[i]++
			out[d] = append(out[d], i)
		}
	}

	for i := range out {
		sort.Ints(out[i])
	}

	var ready []int

	for i := range n {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)

	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]

		order = append(order, i)
		for _, j := range out[i] {
			indeg[j]--
			if indeg[j] == 0 {
				k := sort.SearchInts(ready, j)
				ready = append(ready, 0)
				copy(ready[k+1:], ready[k:])
				ready[k] = j
			}
		}
	}

	if len(order) != n {
		for i := range n {
			if indeg[i] > 0 {
				return nil, &cycleError{node: i}
			}
		}

		return nil, errors.New("cycle detected")
	}

	return order, nil
}

type cycleError struct {
	node int
}

func (e *cycleError) Error() string {
	return fmt.Sprintf("cycle detected at node %d", e.node)
}
