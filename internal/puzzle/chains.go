package puzzle

import (
	"math"

	"github.com/zyedidia/generic/mapset"
)

// Adjacent reports whether b sits exactly one block to the right of a, or
// exactly one block below a, within ConnectTolerance.
func Adjacent(a, b Block) bool {
	dx := b.Position.X - a.Position.X
	dy := b.Position.Y - a.Position.Y
	tight := func(v float64) bool { return math.Abs(v) < ConnectTolerance }

	horiz := tight(dx-BlockWidth) && tight(dy)
	vert := tight(dy-BlockHeight) && tight(dx)
	return horiz || vert
}

// Connected is the symmetric closure of Adjacent.
func Connected(a, b Block) bool {
	return Adjacent(a, b) || Adjacent(b, a)
}

// Chains partitions blocks into connected components. Edges are not
// stored; they are recomputed from positions on every call.
//
// Components are found by breadth-first search, seeded in slice order.
// Each block appears in exactly one chain; isolated blocks form singleton
// chains. Within a chain, blocks are in visit order.
//
// Time: O(n²).
func Chains(blocks []Block) [][]Block {
	visited := mapset.New[string]()
	var chains [][]Block

	for _, start := range blocks {
		if visited.Has(start.ID) {
			continue
		}
		visited.Put(start.ID)
		queue := []Block{start}
		var chain []Block

		for qi := 0; qi < len(queue); qi++ {
			cur := queue[qi]
			chain = append(chain, cur)
			for _, next := range blocks {
				if visited.Has(next.ID) || !Connected(cur, next) {
					continue
				}
				visited.Put(next.ID)
				queue = append(queue, next)
			}
		}
		chains = append(chains, chain)
	}
	return chains
}
