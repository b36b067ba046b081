package catalog

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"lingotask/internal/taskobject"
)

// ErrSearchExhausted reports that the clique search ran out of budget
// before it found a selection or proved that none exists.
var ErrSearchExhausted = errors.New("object selection search exhausted")

const (
	maxRejections = 1000
	searchBudget  = 2_000_000
)

type searchResult int

const (
	searchFound searchResult = iota
	searchInfeasible
	searchExhausted
)

// Feasible checks that some set of k descriptors is pairwise valid. It
// returns ErrInfeasible only when no such set exists.
func (c *Catalog) Feasible(k int) error {
	if k <= 0 {
		return fmt.Errorf("object count must be positive, got %d: %w", k, ErrInfeasible)
	}
	_, res := c.search(c.byDegree(), k, searchBudget)
	switch res {
	case searchFound:
		return nil
	case searchExhausted:
		return fmt.Errorf("%d objects from %d %s descriptors: %w", k, len(c.objects), c.opts.Mode(), ErrSearchExhausted)
	default:
		return fmt.Errorf("%d objects from %d %s descriptors: %w", k, len(c.objects), c.opts.Mode(), ErrInfeasible)
	}
}

// Sample draws k catalog indices whose descriptors are pairwise valid.
// Whole subsets are rejection-sampled first; if that keeps failing the
// clique search runs over a shuffled candidate order, then over degree
// order if the shuffled search runs out of budget.
func (c *Catalog) Sample(rng *rand.Rand, k int) ([]int, error) {
	if k <= 0 || k > len(c.objects) {
		return nil, fmt.Errorf("sample %d of %d objects: %w", k, len(c.objects), ErrInfeasible)
	}

	selected := make([]taskobject.Descriptor, k)
	for attempt := 0; attempt < maxRejections; attempt++ {
		idx := rng.Perm(len(c.objects))[:k]
		for i, j := range idx {
			selected[i] = c.objects[j]
		}
		if taskobject.ValidSet(selected) {
			return idx, nil
		}
	}

	idx, res := c.search(rng.Perm(len(c.objects)), k, searchBudget)
	if res == searchExhausted {
		// Degree order bounds far tighter than a shuffled one.
		idx, res = c.search(c.byDegree(), k, searchBudget)
	}
	switch res {
	case searchFound:
		return idx, nil
	case searchExhausted:
		return nil, fmt.Errorf("sample %d of %d objects: %w", k, len(c.objects), ErrSearchExhausted)
	default:
		return nil, fmt.Errorf("sample %d of %d objects: %w", k, len(c.objects), ErrInfeasible)
	}
}

// byDegree orders indices by how many descriptors each may share a scene
// with, most compatible first.
func (c *Catalog) byDegree() []int {
	degree := make([]int, len(c.objects))
	order := make([]int, len(c.objects))
	for i, row := range c.valid {
		order[i] = i
		for _, ok := range row {
			if ok {
				degree[i]++
			}
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return degree[order[a]] > degree[order[b]] })
	return order
}

// search looks for a k-clique of the validity graph. Greedy passes seeded
// from every candidate run first; a branch and bound search whose bound is
// a greedy coloring of the remaining candidates then either finds a clique
// or proves that none exists, unless the budget runs out.
func (c *Catalog) search(order []int, k, budget int) ([]int, searchResult) {
	if k > len(order) {
		return nil, searchInfeasible
	}
	if chosen := c.greedy(order, k); chosen != nil {
		return chosen, searchFound
	}

	chosen := make([]int, 0, k)
	var expand func(candidates []int) searchResult
	expand = func(candidates []int) searchResult {
		if len(chosen) == k {
			return searchFound
		}
		vertices, colors := c.colorSort(candidates)
		for i := len(vertices) - 1; i >= 0; i-- {
			if len(chosen)+colors[i] < k {
				return searchInfeasible
			}
			budget--
			if budget <= 0 {
				return searchExhausted
			}
			v := vertices[i]
			next := make([]int, 0, i)
			for _, u := range vertices[:i] {
				if c.valid[v][u] {
					next = append(next, u)
				}
			}
			chosen = append(chosen, v)
			if res := expand(next); res != searchInfeasible {
				return res
			}
			chosen = chosen[:len(chosen)-1]
		}
		return searchInfeasible
	}

	res := expand(order)
	if res != searchFound {
		return nil, res
	}
	return append([]int(nil), chosen...), searchFound
}

// greedy grows a clique from each start in turn, adding every later
// candidate that stays compatible.
func (c *Catalog) greedy(order []int, k int) []int {
	chosen := make([]int, 0, k)
	for _, start := range order {
		chosen = append(chosen[:0], start)
		for _, v := range order {
			if v != start && c.compatible(v, chosen) {
				chosen = append(chosen, v)
			}
			if len(chosen) >= k {
				return append([]int(nil), chosen[:k]...)
			}
		}
	}
	return nil
}

func (c *Catalog) compatible(v int, chosen []int) bool {
	for _, u := range chosen {
		if !c.valid[v][u] {
			return false
		}
	}
	return true
}

// colorSort partitions candidates into color classes of mutually invalid
// descriptors and returns them class by class with 1-based class numbers.
// A clique holds at most one descriptor per class.
func (c *Catalog) colorSort(candidates []int) ([]int, []int) {
	var classes [][]int
	for _, v := range candidates {
		placed := false
		for ci, class := range classes {
			if !c.adjacentToAny(v, class) {
				classes[ci] = append(class, v)
				placed = true
				break
			}
		}
		if !placed {
			classes = append(classes, []int{v})
		}
	}
	vertices := make([]int, 0, len(candidates))
	colors := make([]int, 0, len(candidates))
	for ci, class := range classes {
		for _, v := range class {
			vertices = append(vertices, v)
			colors = append(colors, ci+1)
		}
	}
	return vertices, colors
}

func (c *Catalog) adjacentToAny(v int, class []int) bool {
	for _, u := range class {
		if c.valid[v][u] {
			return true
		}
	}
	return false
}
