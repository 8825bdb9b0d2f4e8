package session

// Mode is how the player builds a solution.
type Mode string

const (
	ModeJigsaw Mode = "jigsaw" // interlocking blocks
	ModeBrick  Mode = "brick"  // flat blocks
	ModeCode   Mode = "code"   // free text
)

// Menu labels for an explicitly chosen mode.
const (
	GameModeText   = "Text Code"
	GameModeBlocks = "Puzzle Blocks"
	GameModeJigsaw = "Interlocking Puzzle"
)

// ResolveMode picks the mode for a session. An explicit gameMode wins;
// otherwise the level decides (21+ code, 11+ brick, else jigsaw). Block
// modes fall back to code when the puzzle has no blocks.
func ResolveMode(gameMode string, level int, hasBlocks bool) Mode {
	var m Mode
	switch gameMode {
	case GameModeText:
		m = ModeCode
	case GameModeBlocks:
		m = ModeBrick
	case "":
		switch {
		case level >= 21:
			m = ModeCode
		case level >= 11:
			m = ModeBrick
		default:
			m = ModeJigsaw
		}
	default:
		m = ModeJigsaw
	}
	if m != ModeCode && !hasBlocks {
		return ModeCode
	}
	return m
}

func (m Mode) usesBlocks() bool { return m == ModeJigsaw || m == ModeBrick }
