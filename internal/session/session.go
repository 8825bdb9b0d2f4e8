// internal/session/session.go
//
// One player's attempt at one puzzle.
// Responsibilities:
//   - Own the placed blocks (or typed code) and apply drag gestures.
//   - Run the submit state machine: local check → remote fallback → verdict.
//   - Coordinate hint purchases between the local ledger and the account.
//   - React to the countdown (warning line, timeout failure).
//   - Keep the terminal log and emit events for the presentation layer.
//
// Phases:
//   idle ──submit──▶ succeeded                      (local match)
//   idle ──submit──▶ pending ──verdict──▶ succeeded | failed
//   failed ──submit──▶ …                            (resubmittable)
//   any non-succeeded phase ──expiry──▶ timed_out
// succeeded and timed_out are terminal. A verdict that arrives after
// timeout, after Close, or for an older submit is dropped.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codesiege/internal/ledger"
	"github.com/robalobadob/codesiege/internal/puzzle"
	"github.com/robalobadob/codesiege/internal/timer"
	"github.com/robalobadob/codesiege/internal/verify"
)

var (
	ErrPending      = errors.New("verification already in progress")
	ErrFinished     = errors.New("attempt already finished")
	ErrClosed       = errors.New("session closed")
	ErrWrongMode    = errors.New("operation not available in this mode")
	ErrUnknownBlock = errors.New("unknown block")
	ErrNoHintOffer  = errors.New("no hint awaiting confirmation")
)

// Phase is where the current attempt stands.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
	PhaseTimedOut  Phase = "timed_out"
)

func (p Phase) terminal() bool { return p == PhaseSucceeded || p == PhaseTimedOut }

// Verifier judges code the local matcher rejected.
type Verifier interface {
	Verify(ctx context.Context, req verify.Request) (verify.Verdict, error)
}

// Debugger explains what is wrong with code.
type Debugger interface {
	Debug(ctx context.Context, req verify.Request) (verify.Diagnosis, error)
}

// Config describes a new session.
type Config struct {
	ID     string
	UserID string
	Puzzle *puzzle.Puzzle

	GameMode   string
	Level      int
	Track      string
	Difficulty string
	Language   string

	// TimeLimit of zero disables the countdown.
	TimeLimit   time.Duration
	WarnAt      time.Duration
	SettleDelay time.Duration

	Account  ledger.Account
	Verifier Verifier
	Debugger Debugger // optional
	OnEvent  Listener // optional
}

// Session is safe for concurrent use.
type Session struct {
	id       string
	userID   string
	puz      *puzzle.Puzzle
	mode     Mode
	language string
	expected []string
	solvable bool
	settle   time.Duration
	started  time.Time

	ledger    *ledger.Ledger
	account   ledger.Account
	verifier  Verifier
	debugger  Debugger
	countdown *timer.Countdown
	listener  Listener
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	blocks    []puzzle.Block
	code      string
	phase     Phase
	attempts  int
	gen       int
	result    *Result
	logs      []string
	offer     *puzzle.Hint
	completed bool
	closed    bool
	outbox    []Event

	dispatchMu sync.Mutex
}

// New loads a puzzle into a fresh session and starts its countdown.
func New(cfg Config) (*Session, error) {
	if cfg.Puzzle == nil {
		return nil, errors.New("nil puzzle")
	}
	if err := cfg.Puzzle.Validate(); err != nil {
		return nil, fmt.Errorf("invalid puzzle %s: %w", cfg.Puzzle.ID, err)
	}
	if cfg.Account == nil || cfg.Verifier == nil {
		return nil, errors.New("account and verifier are required")
	}

	p := cfg.Puzzle
	expected, solvable := p.ExpectedContent()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       cfg.ID,
		userID:   cfg.UserID,
		puz:      p,
		mode:     ResolveMode(cfg.GameMode, cfg.Level, len(p.InitialBlocks) > 0),
		language: orDefault(cfg.Language, "Python"),
		expected: expected,
		solvable: solvable && len(expected) > 0,
		settle:   cfg.SettleDelay,
		started:  time.Now(),
		ledger:   ledger.New(p.Rewards.Exp, p.Hints),
		account:  cfg.Account,
		verifier: cfg.Verifier,
		debugger: cfg.Debugger,
		listener: cfg.OnEvent,
		log:      log.With().Str("session", cfg.ID).Str("puzzle", p.ID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		phase:    PhaseIdle,
	}
	if s.mode.usesBlocks() {
		s.blocks = p.Layout()
	} else {
		s.code = p.InitialCode
	}
	s.logs = []string{
		"> System initialized...",
		fmt.Sprintf("> Track: %s | %s", orDefault(cfg.Track, "Beginner"), orDefault(cfg.Difficulty, "Easy")),
		"> Waiting for input sequence...",
	}

	if cfg.TimeLimit > 0 {
		warnAt := cfg.WarnAt
		if warnAt == 0 {
			warnAt = timer.DefaultWarnAt
		}
		s.countdown = timer.New(cfg.TimeLimit, warnAt)
		s.countdown.OnWarning = s.onWarning
		s.countdown.OnExpire = s.Expire
		s.countdown.Start()
	}
	s.log.Info().Str("mode", string(s.mode)).Int("blocks", len(s.blocks)).Msg("session started")
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning player.
func (s *Session) UserID() string { return s.userID }

// Puzzle returns the loaded definition.
func (s *Session) Puzzle() *puzzle.Puzzle { return s.puz }

// Mode returns the resolved mode.
func (s *Session) Mode() Mode { return s.mode }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Drag moves a block by delta, snapping it to the first nearby neighbor.
func (s *Session) Drag(blockID string, delta puzzle.Vec) (puzzle.SnapResult, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return puzzle.SnapResult{}, ErrClosed
	}
	if !s.mode.usesBlocks() {
		return puzzle.SnapResult{}, ErrWrongMode
	}
	res, ok := puzzle.Snap(s.blocks, blockID, delta)
	if !ok {
		return puzzle.SnapResult{}, ErrUnknownBlock
	}
	for i := range s.blocks {
		if s.blocks[i].ID == blockID {
			s.blocks[i] = res.Block
			break
		}
	}
	if res.Snapped {
		b := s.present(res.Block)
		s.emit(Event{Type: EventConnect, Block: &b, Neighbor: res.Neighbor})
	}
	return res, nil
}

// Close tears the session down. In-flight calls are cancelled and their
// results ignored. A completion already scheduled still fires.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	s.offer = nil
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.cancel()
	s.log.Debug().Msg("session closed")
}

// Wait blocks until background verification, diagnostics and a pending
// completion have finished.
func (s *Session) Wait() { s.wg.Wait() }

// View is a read-only snapshot for rendering.
type View struct {
	ID             string         `json:"id"`
	PuzzleID       string         `json:"puzzleId"`
	Description    string         `json:"description"`
	ExpectedOutput string         `json:"expectedOutput"`
	Mode           Mode           `json:"mode"`
	Phase          Phase          `json:"phase"`
	Blocks         []puzzle.Block `json:"blocks,omitempty"`
	Code           string         `json:"code,omitempty"`
	Reward         int64          `json:"reward"`
	Tier           int            `json:"tier"`
	HintCount      int            `json:"hintCount"`
	NextHintCost   *int64         `json:"nextHintCost,omitempty"`
	Hints          []string       `json:"hints"`
	Attempts       int            `json:"attempts"`
	Result         *Result        `json:"result,omitempty"`
	Logs           []string       `json:"logs"`
	TimeLeft       float64        `json:"timeLeft,omitempty"`
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:             s.id,
		PuzzleID:       s.puz.ID,
		Description:    s.puz.Description,
		ExpectedOutput: s.puz.ExpectedOutput,
		Mode:           s.mode,
		Phase:          s.phase,
		Code:           s.code,
		Reward:         s.ledger.Reward(),
		Tier:           s.ledger.Tier(),
		HintCount:      len(s.puz.Hints),
		Hints:          s.ledger.Revealed(),
		Attempts:       s.attempts,
		Logs:           append([]string(nil), s.logs...),
	}
	if next, err := s.ledger.Next(); err == nil {
		cost := next.Cost
		v.NextHintCost = &cost
	}
	if s.result != nil {
		r := *s.result
		v.Result = &r
	}
	for _, b := range s.blocks {
		v.Blocks = append(v.Blocks, s.present(b))
	}
	if s.countdown != nil {
		v.TimeLeft = s.countdown.Remaining().Seconds()
	}
	return v
}

// Logs returns a copy of the terminal log.
func (s *Session) Logs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logs...)
}

// present hides connector shapes in brick mode.
func (s *Session) present(b puzzle.Block) puzzle.Block {
	if s.mode == ModeBrick {
		b.Connectors = puzzle.Connectors{}
	}
	return b
}

func (s *Session) onWarning(remaining time.Duration) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase.terminal() {
		return
	}
	line := fmt.Sprintf("> WARNING: %d seconds remaining.", int(remaining.Seconds()))
	s.logs = append(s.logs, line)
	s.emit(Event{Type: EventWarning, Line: line})
}

// appendLog adds a terminal line and emits it. Caller holds s.mu.
func (s *Session) appendLog(line string) {
	s.logs = append(s.logs, line)
	s.emit(Event{Type: EventLog, Line: line})
}

// setResult replaces the result message and emits it. Caller holds s.mu.
func (s *Session) setResult(t ResultType, msg string) {
	r := Result{Type: t, Message: msg}
	s.result = &r
	s.emit(Event{Type: EventResult, Result: &r})
}

// emit queues an event. Caller holds s.mu.
func (s *Session) emit(ev Event) {
	if s.listener != nil {
		s.outbox = append(s.outbox, ev)
	}
}

// flush delivers queued events. It must be called without s.mu held.
func (s *Session) flush() {
	if s.listener == nil {
		return
	}
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	evs := s.outbox
	s.outbox = nil
	s.mu.Unlock()

	for _, ev := range evs {
		s.listener(ev)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
