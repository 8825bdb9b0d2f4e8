package puzzle

import (
	"strings"
	"unicode/utf16"
)

// Content values whose connectors are pinned so the two halves of the
// "hello world" output call visibly mate: the call exposes a tab on its
// right edge and its argument a slot on its left edge. The remaining
// edges stay randomised as decoys.
const (
	outputCall    = "print"
	outputLiteral = "Hello World"
)

// GenerateConnectors derives the edge shapes of a block from its id and
// content alone. The same pair always yields the same result, in any
// process, so geometry needs no stored state.
func GenerateConnectors(id, content string) Connectors {
	r := newSeeded(id + content)

	switch {
	case content == outputCall:
		return Connectors{
			Top:    r.connector(),
			Bottom: r.connector(),
			Left:   r.connector(),
			Right:  Tab,
		}
	case strings.Contains(content, outputLiteral):
		c := Connectors{Top: r.connector(), Bottom: r.connector(), Left: Slot}
		c.Right = r.connector()
		return c
	}

	// Draw order is top, bottom, left, right.
	c := Connectors{}
	c.Top = r.connector()
	c.Bottom = r.connector()
	c.Left = r.connector()
	c.Right = r.connector()
	return c
}

// seeded is a 32-bit string hash followed by an xorshift-multiply mix.
// All arithmetic wraps at 32 bits.
type seeded struct{ h uint32 }

func newSeeded(s string) *seeded {
	h := uint32(0xdeadbeef)
	for _, u := range utf16.Encode([]rune(s)) {
		h = (h ^ uint32(u)) * 2654435761
	}
	return &seeded{h: h}
}

// next returns a value in [0, 1).
func (s *seeded) next() float64 {
	h := s.h
	h = (h ^ h>>16) * 2246822507
	h = (h ^ h>>13) * 3266489909
	h ^= h >> 16
	s.h = h
	return float64(h) / 4294967296
}

// connector never yields None; flat edges only come from explicit shapes.
func (s *seeded) connector() Connector {
	if s.next() > 0.5 {
		return Tab
	}
	return Slot
}
