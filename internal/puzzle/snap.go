package puzzle

import "math"

// SnapResult is the outcome of moving a block.
type SnapResult struct {
	Block    Block
	Snapped  bool
	Neighbor string // id of the block it snapped to, if any
}

// Snap applies delta to the block with the given id and clamps it to the
// exact adjacent offset of the first neighbor it nearly touches.
//
// Neighbors are tested in the order of blocks, and for each neighbor the
// sides are tested as right-of, left-of, below, above. The first hit wins
// even if a later neighbor is closer, so the result depends only on slice
// order. ok is false if no block has the id.
//
// blocks is not modified.
func Snap(blocks []Block, id string, delta Vec) (res SnapResult, ok bool) {
	idx := indexOf(blocks, id)
	if idx < 0 {
		return SnapResult{}, false
	}
	moved := blocks[idx]
	moved.Position = moved.Position.Add(delta)
	res.Block = moved

	for _, other := range blocks {
		if other.ID == id {
			continue
		}
		if p, hit := snapTo(moved.Position, other.Position); hit {
			res.Block.Position = p
			res.Snapped = true
			res.Neighbor = other.ID
			break
		}
	}
	return res, true
}

// snapTo returns the exact adjacent position of p next to o, if p is
// within SnapThreshold of one.
func snapTo(p, o Vec) (Vec, bool) {
	dx := p.X - o.X
	dy := p.Y - o.Y
	near := func(v float64) bool { return math.Abs(v) < SnapThreshold }

	switch {
	case near(dx-BlockWidth) && near(dy):
		return Vec{X: o.X + BlockWidth, Y: o.Y}, true
	case near(dx+BlockWidth) && near(dy):
		return Vec{X: o.X - BlockWidth, Y: o.Y}, true
	case near(dy-BlockHeight) && near(dx):
		return Vec{X: o.X, Y: o.Y + BlockHeight}, true
	case near(dy+BlockHeight) && near(dx):
		return Vec{X: o.X, Y: o.Y - BlockHeight}, true
	}
	return Vec{}, false
}

func indexOf(blocks []Block, id string) int {
	for i := range blocks {
		if blocks[i].ID == id {
			return i
		}
	}
	return -1
}
