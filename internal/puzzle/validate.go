package puzzle

import (
	"sort"
	"strings"
	"unicode"
)

// ReadingOrder returns a copy of chain sorted left to right by x.
//
// Only x is considered. A chain connected vertically is therefore read in
// whatever order its x positions give; puzzles are laid out horizontally.
func ReadingOrder(chain []Block) []Block {
	out := append([]Block(nil), chain...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position.X < out[j].Position.X })
	return out
}

// ChainMatches reports whether the chain, read left to right, has exactly
// the expected contents. Comparison is plain string equality.
func ChainMatches(chain []Block, expected []string) bool {
	if len(chain) != len(expected) {
		return false
	}
	for i, b := range ReadingOrder(chain) {
		if b.Content != expected[i] {
			return false
		}
	}
	return true
}

// MatchChains reports whether any chain matches expected. Evaluation stops
// at the first match.
func MatchChains(chains [][]Block, expected []string) bool {
	for _, c := range chains {
		if ChainMatches(c, expected) {
			return true
		}
	}
	return false
}

// MatchCode is the text-mode comparison: all whitespace is removed from
// the submission and from the concatenated expected contents, and the
// results must be equal.
func MatchCode(code string, expected []string) bool {
	return stripSpace(code) == stripSpace(strings.Join(expected, ""))
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// rowGap is how far apart two blocks must be vertically before they are
// read as separate lines.
const rowGap = 40.0

// BuildCode renders all blocks as source text for remote verification:
// blocks are sorted into rows (top to bottom) and left to right within a
// row, then joined one per line.
func BuildCode(blocks []Block) string {
	if len(blocks) == 0 {
		return ""
	}
	sorted := append([]Block(nil), blocks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Position, sorted[j].Position
		if d := a.Y - b.Y; d > rowGap || d < -rowGap {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	lines := make([]string, len(sorted))
	for i, b := range sorted {
		lines[i] = b.Content
	}
	return strings.Join(lines, "\n")
}
