package session

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/robalobadob/codesiege/internal/puzzle"
	"github.com/robalobadob/codesiege/internal/verify"
)

var wittyErrors = []string{
	"The computer is confusingly staring back at you.",
	"That code sequence caused a singularity. Try again.",
	"Syntax detected... logic? Not so much.",
	"The compiler just sighed. Loudly.",
	"404: Logic not found.",
}

// Submit checks the current block layout (or the stored code in code
// mode). A local match succeeds immediately; otherwise the attempt goes
// to PhasePending and one remote verification is started.
func (s *Session) Submit() (Phase, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked()
}

// SubmitCode stores code and submits it. Only valid in code mode.
func (s *Session) SubmitCode(code string) (Phase, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeCode {
		return s.phase, ErrWrongMode
	}
	if err := s.submittable(); err != nil {
		return s.phase, err
	}
	s.code = code
	return s.submitLocked()
}

func (s *Session) submittable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.phase == PhasePending:
		return ErrPending
	case s.phase.terminal():
		return ErrFinished
	}
	return nil
}

func (s *Session) submitLocked() (Phase, error) {
	if err := s.submittable(); err != nil {
		return s.phase, err
	}

	var matched bool
	var code string
	if s.mode == ModeCode {
		code = s.code
		matched = s.solvable && puzzle.MatchCode(code, s.expected)
	} else {
		matched = s.solvable && puzzle.MatchChains(puzzle.Chains(s.blocks), s.expected)
		if !matched {
			code = puzzle.BuildCode(s.blocks)
		}
	}

	if matched {
		s.log.Info().Int("attempts", s.attempts).Msg("local match")
		s.succeed("> Execution Successful.")
		return s.phase, nil
	}

	s.attempts++
	s.gen++
	s.phase = PhasePending
	s.setResult(ResultInfo, "> Verifying logic with Neural Engine...")

	req := verify.Request{
		Code:           code,
		Language:       s.language,
		Description:    s.puz.Description,
		ExpectedOutput: s.puz.ExpectedOutput,
	}
	s.log.Debug().Int("attempt", s.attempts).Msg("local mismatch, asking verifier")
	s.wg.Add(1)
	go s.verify(s.gen, req)
	return s.phase, nil
}

// verify runs the remote check for submit generation gen.
func (s *Session) verify(gen int, req verify.Request) {
	defer s.wg.Done()
	v, err := s.verifier.Verify(s.ctx, req)

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen || s.phase != PhasePending {
		s.log.Debug().Int("gen", gen).Str("phase", string(s.phase)).Msg("dropping stale verdict")
		return
	}

	switch {
	case err != nil:
		s.log.Error().Err(err).Msg("verification failed")
		s.phase = PhaseFailed
		s.setResult(ResultError, "> Error: System Check Failed. Please retry.")
	case v.Correct:
		s.log.Info().Int("attempts", s.attempts).Msg("remote verification accepted")
		s.succeed("> Logic Verified. Execution Successful.")
	default:
		msg := v.Message
		if msg == "" {
			msg = wittyErrors[rand.IntN(len(wittyErrors))]
		}
		s.phase = PhaseFailed
		s.setResult(ResultError, fmt.Sprintf("> Error: %s (Check terminal for hint)", msg))
		if s.debugger != nil {
			s.appendLog("> ANALYZING ERROR PATTERNS...")
			req.ExpectedOutput = ""
			s.wg.Add(1)
			go s.diagnose(req)
		}
	}
}

// diagnose asks for feedback on rejected code. Its only effect is a
// terminal line; failures are logged and swallowed.
func (s *Session) diagnose(req verify.Request) {
	defer s.wg.Done()
	d, err := s.debugger.Debug(s.ctx, req)

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("diagnostic call failed")
		s.appendLog("> SYSTEM: Unable to connect to neural engine.")
		return
	}
	hint := d.Feedback
	if hint == "" {
		hint = d.Message
	}
	if hint == "" {
		hint = "Try checking your syntax logic."
	}
	s.appendLog("> [AI ASSISTANT]: " + hint)
}

// succeed finalizes the attempt as solved and schedules the completion
// event after the settle delay. Caller holds s.mu.
func (s *Session) succeed(msg string) {
	s.phase = PhaseSucceeded
	s.offer = nil
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.setResult(ResultSuccess, msg)

	c := s.successCompletion()
	if s.settle <= 0 {
		s.complete(c)
		return
	}
	s.wg.Add(1)
	time.AfterFunc(s.settle, func() {
		defer s.wg.Done()
		defer s.flush()
		s.mu.Lock()
		defer s.mu.Unlock()
		c.Metrics.Time = time.Since(s.started).Seconds()
		s.complete(c)
	})
}

// successCompletion pays out the current reward, not the base one. Reward,
// errors and hints are fixed here, at verdict time. Caller holds s.mu.
func (s *Session) successCompletion() Completion {
	rewards := s.puz.Rewards
	rewards.Exp = s.ledger.Reward()
	return Completion{
		Success: true,
		Rewards: &rewards,
		Metrics: &Metrics{
			Time:   time.Since(s.started).Seconds(),
			Errors: s.attempts,
			Hints:  s.ledger.Tier(),
		},
	}
}

// complete emits c unless a completion was already emitted. Caller holds s.mu.
func (s *Session) complete(c Completion) {
	if s.completed {
		return
	}
	s.completed = true
	s.emit(Event{Type: EventComplete, Completion: &c})
}

// Expire ends the attempt as a timeout failure. It overrides a pending
// verification; the late verdict is dropped. No effect once the attempt
// has succeeded or already timed out, or after Close.
func (s *Session) Expire() {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.phase.terminal() {
		return
	}
	s.log.Info().Str("from", string(s.phase)).Msg("attempt timed out")
	s.phase = PhaseTimedOut
	s.gen++
	s.offer = nil
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.setResult(ResultError, "> CRITICAL FAILURE: TIME EXPIRED")
	s.complete(Completion{Success: false})
}
