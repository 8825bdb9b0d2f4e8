// internal/catalog/catalog.go
//
// Read-only puzzle catalogue.
//
// Responsibilities:
//   - Load puzzle definitions from a JSON file (PUZZLES_FILE) or fall back to
//     the embedded default (assets/puzzles.json).
//   - Validate every definition once at load time.
//   - Serve lookups by id, ordered listings, and solution-free summaries.
//
// File shape:
//   {
//     "objectives": { "<tower>": ["...", ...] },
//     "puzzles":    [ { "id": "...", "tower": 1, "floor": 1, ...puzzle fields } ]
//   }

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/robalobadob/codesiege/assets"
	"github.com/robalobadob/codesiege/internal/puzzle"
)

// Entry is one catalogue puzzle with its place in the tower.
type Entry struct {
	puzzle.Puzzle
	Tower int `json:"tower"`
	Floor int `json:"floor"`
}

// Summary is what a player may see before starting: no solution, no hint text.
type Summary struct {
	ID             string         `json:"id"`
	Tower          int            `json:"tower"`
	Floor          int            `json:"floor"`
	Description    string         `json:"description"`
	ExpectedOutput string         `json:"expectedOutput"`
	Rewards        puzzle.Rewards `json:"rewards"`
	Blocks         int            `json:"blocks"`
	Hints          int            `json:"hints"`
}

type file struct {
	Objectives map[string][]string `json:"objectives"`
	Puzzles    []Entry             `json:"puzzles"`
}

// Catalog is immutable after Load and safe for concurrent use.
type Catalog struct {
	entries    []Entry
	byID       map[string]int
	objectives map[int][]string
}

// Load reads the catalogue from path, or from the embedded default when
// path is empty.
func Load(path string) (*Catalog, error) {
	var (
		raw []byte
		err error
	)
	if path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = assets.Puzzles()
	}
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return Parse(raw)
}

// Parse builds a catalogue from raw JSON.
func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}
	if len(f.Puzzles) == 0 {
		return nil, errors.New("catalog: no puzzles")
	}

	c := &Catalog{
		entries:    f.Puzzles,
		byID:       make(map[string]int, len(f.Puzzles)),
		objectives: make(map[int][]string, len(f.Objectives)),
	}
	sort.SliceStable(c.entries, func(i, j int) bool {
		a, b := c.entries[i], c.entries[j]
		if a.Tower != b.Tower {
			return a.Tower < b.Tower
		}
		return a.Floor < b.Floor
	})
	for i := range c.entries {
		e := &c.entries[i]
		if e.ID == "" {
			return nil, fmt.Errorf("catalog: puzzle %d has no id", i)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate puzzle id %q", e.ID)
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: puzzle %s: %w", e.ID, err)
		}
		c.byID[e.ID] = i
	}
	for k, v := range f.Objectives {
		tower, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("catalog: objectives key %q is not a tower number", k)
		}
		c.objectives[tower] = v
	}
	return c, nil
}

// Get returns the puzzle with the given id.
func (c *Catalog) Get(id string) (*puzzle.Puzzle, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.entries[i].Puzzle, true
}

// At returns the i-th entry in tower/floor order.
func (c *Catalog) At(i int) Entry { return c.entries[i] }

// Len is the number of puzzles.
func (c *Catalog) Len() int { return len(c.entries) }

// Objectives lists the learning goals of a tower.
func (c *Catalog) Objectives(tower int) []string { return c.objectives[tower] }

// Summaries lists every puzzle without its solution.
func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, len(c.entries))
	for i, e := range c.entries {
		out[i] = Summarize(e)
	}
	return out
}

// Summarize strips the solution and hint text from e.
func Summarize(e Entry) Summary {
	return Summary{
		ID:             e.ID,
		Tower:          e.Tower,
		Floor:          e.Floor,
		Description:    e.Description,
		ExpectedOutput: e.ExpectedOutput,
		Rewards:        e.Rewards,
		Blocks:         len(e.InitialBlocks),
		Hints:          len(e.Hints),
	}
}
