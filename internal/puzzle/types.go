// internal/puzzle/types.go
//
// Core type definitions for block puzzles.
// Defines:
//   - Connector / Connectors: edge shapes of a block (none, tab, slot).
//   - Vec: a 2-D position or delta in layout units.
//   - Block: one draggable code fragment.
//   - Puzzle: read-only puzzle definition (blocks, solution, rewards, hints).

package puzzle

import (
	"errors"
	"fmt"
)

// Layout constants shared by the snap resolver and the connectivity extractor.
const (
	BlockWidth  = 140.0
	BlockHeight = 48.0

	// SnapThreshold is the tolerance used while dragging.
	SnapThreshold = 30.0
	// ConnectTolerance is the tolerance used at submit time; blocks should
	// already be snapped by then, so it is tighter than SnapThreshold.
	ConnectTolerance = 10.0
)

// Connector is the shape of one block edge.
type Connector int

const (
	None Connector = 0
	Tab  Connector = 1 // protrudes
	Slot Connector = 2 // receives
)

func (c Connector) String() string {
	switch c {
	case Tab:
		return "tab"
	case Slot:
		return "slot"
	default:
		return "none"
	}
}

// Connectors holds the shape of all four edges of a block.
type Connectors struct {
	Top    Connector `json:"top"`
	Right  Connector `json:"right"`
	Bottom Connector `json:"bottom"`
	Left   Connector `json:"left"`
}

// Vec is a position or a delta in layout units.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v translated by d.
func (v Vec) Add(d Vec) Vec { return Vec{X: v.X + d.X, Y: v.Y + d.Y} }

// Kind is the semantic kind of a block. It only affects styling.
type Kind string

const (
	KindFunction Kind = "function"
	KindString   Kind = "string"
	KindKeyword  Kind = "keyword"
	KindValue    Kind = "value"
	KindControl  Kind = "control"
)

// BlockDef is a block as it appears in a puzzle definition.
type BlockDef struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Type    Kind   `json:"type"`
	// Connectors, when set, replaces the seeded connector shapes.
	Connectors *Connectors `json:"connectors,omitempty"`
}

// Block is a placed block. Only Position changes after load.
type Block struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Type       Kind       `json:"type"`
	Position   Vec        `json:"position"`
	Connectors Connectors `json:"connectors"`
}

// Hint is one purchasable hint tier.
type Hint struct {
	Cost int64  `json:"cost"`
	Text string `json:"text"`
}

// Rewards is the payout of a solved puzzle.
type Rewards struct {
	Exp  int64 `json:"exp"`
	Gems int64 `json:"gems,omitempty"`
}

// Puzzle is a read-only puzzle definition. The engine never mutates it.
type Puzzle struct {
	ID              string     `json:"id"`
	Description     string     `json:"description"`
	ExpectedOutput  string     `json:"expectedOutput"`
	InitialBlocks   []BlockDef `json:"initialBlocks"`
	InitialCode     string     `json:"initialCode,omitempty"`
	CorrectSequence []string   `json:"correctSequence"`
	Rewards         Rewards    `json:"rewards"`
	Hints           []Hint     `json:"hints"`
}

// Validate reports structural problems with a definition: duplicate or
// empty block ids, solution ids that name no block, negative hint costs.
func (p *Puzzle) Validate() error {
	seen := make(map[string]struct{}, len(p.InitialBlocks))
	for _, b := range p.InitialBlocks {
		if b.ID == "" {
			return errors.New("block with empty id")
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("duplicate block id %q", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	for _, id := range p.CorrectSequence {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("correct sequence names unknown block %q", id)
		}
	}
	for i, h := range p.Hints {
		if h.Cost < 0 {
			return fmt.Errorf("hint %d has negative cost", i)
		}
	}
	if p.Rewards.Exp < 0 {
		return errors.New("negative reward")
	}
	return nil
}

// Layout places the initial blocks on a two-column grid and derives their
// connectors.
func (p *Puzzle) Layout() []Block {
	out := make([]Block, len(p.InitialBlocks))
	for i, d := range p.InitialBlocks {
		c := GenerateConnectors(d.ID, d.Content)
		if d.Connectors != nil {
			c = *d.Connectors
		}
		out[i] = Block{
			ID:      d.ID,
			Content: d.Content,
			Type:    d.Type,
			Position: Vec{
				X: 50 + float64(i%2)*200,
				Y: 100 + float64(i/2)*100,
			},
			Connectors: c,
		}
	}
	return out
}

// ExpectedContent resolves CorrectSequence into block contents.
// ok is false if any id does not name a block; such a puzzle can never be
// solved locally.
func (p *Puzzle) ExpectedContent() (content []string, ok bool) {
	byID := make(map[string]string, len(p.InitialBlocks))
	for _, b := range p.InitialBlocks {
		byID[b.ID] = b.Content
	}
	content = make([]string, 0, len(p.CorrectSequence))
	ok = true
	for _, id := range p.CorrectSequence {
		c, found := byID[id]
		if !found {
			ok = false
		}
		content = append(content, c)
	}
	return content, ok
}
