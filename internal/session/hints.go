package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalobadob/codesiege/internal/ledger"
	"github.com/robalobadob/codesiege/internal/puzzle"
	"github.com/robalobadob/codesiege/internal/verify"
)

// DebugCost is what an on-demand diagnosis takes out of the reward.
const DebugCost = 50

var (
	ErrDebugUnavailable   = errors.New("diagnostics not configured")
	ErrInsufficientBounty = errors.New("reward too low for diagnosis")
	ErrNothingToDebug     = errors.New("no code to diagnose")
)

// RequestHint offers the next hint for purchase. Nothing is spent: the
// offer must be confirmed with ConfirmHint. It fails with
// ledger.ErrHintsExhausted at the cap and ledger.ErrInsufficientFunds if
// the account cannot cover the cost.
func (s *Session) RequestHint(ctx context.Context) (puzzle.Hint, error) {
	s.mu.Lock()
	if err := s.hintable(); err != nil {
		s.mu.Unlock()
		return puzzle.Hint{}, err
	}
	s.mu.Unlock()

	next, err := s.ledger.CheckFunds(ctx, s.account)

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errors.Is(err, ledger.ErrHintsExhausted):
		return puzzle.Hint{}, err
	case errors.Is(err, ledger.ErrInsufficientFunds):
		s.appendLog(fmt.Sprintf("> ERROR: Insufficient Global EXP for Hint (-%d EXP required)", next.Cost))
		return puzzle.Hint{}, err
	case err != nil:
		s.log.Warn().Err(err).Msg("balance check failed")
		s.appendLog("> ERROR: Transaction Failed")
		return puzzle.Hint{}, err
	}
	if err := s.hintable(); err != nil {
		return puzzle.Hint{}, err
	}
	s.offer = &next
	return next, nil
}

// ConfirmHint buys the offered hint. The account is debited first; tier
// and reward only advance once the debit has succeeded.
func (s *Session) ConfirmHint(ctx context.Context) (puzzle.Hint, int, error) {
	s.mu.Lock()
	if err := s.hintable(); err != nil {
		s.mu.Unlock()
		return puzzle.Hint{}, 0, err
	}
	if s.offer == nil {
		s.mu.Unlock()
		return puzzle.Hint{}, 0, ErrNoHintOffer
	}
	s.offer = nil
	s.mu.Unlock()

	h, tier, err := s.ledger.Purchase(ctx, s.account)

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errors.Is(err, ledger.ErrHintsExhausted), errors.Is(err, ledger.ErrPurchaseInFlight):
		return puzzle.Hint{}, 0, err
	case errors.Is(err, ledger.ErrInsufficientFunds):
		if next, nerr := s.ledger.Next(); nerr == nil {
			s.appendLog(fmt.Sprintf("> ERROR: Insufficient Global EXP for Hint (-%d EXP required)", next.Cost))
		}
		return puzzle.Hint{}, 0, err
	case err != nil:
		s.log.Warn().Err(err).Msg("hint debit failed")
		s.appendLog("> ERROR: Transaction Failed")
		return puzzle.Hint{}, 0, err
	}
	s.log.Info().Int("tier", tier).Int64("cost", h.Cost).Msg("hint purchased")
	if s.closed {
		return h, tier, nil
	}
	s.appendLog(fmt.Sprintf("> HINT_REQ_ACK... -%d EXP (User Balance)", h.Cost))
	s.appendLog(`> SYSTEM_MSG: "` + h.Text + `"`)
	return h, tier, nil
}

// CancelHint withdraws an unconfirmed offer.
func (s *Session) CancelHint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offer = nil
}

func (s *Session) hintable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.phase.terminal():
		return ErrFinished
	}
	return nil
}

// Debug asks the diagnostic service about the typed code and charges
// DebugCost from the reward once an answer arrives. Code mode only; an
// empty code argument reuses the stored code. An answer that arrives after
// the attempt ended or the session closed is discarded without a charge.
func (s *Session) Debug(ctx context.Context, code string) (string, error) {
	s.mu.Lock()
	if err := s.hintable(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if s.mode != ModeCode {
		s.mu.Unlock()
		return "", ErrWrongMode
	}
	if code != "" {
		s.code = code
	}
	if s.code == "" {
		s.mu.Unlock()
		return "", ErrNothingToDebug
	}
	if s.debugger == nil {
		s.mu.Unlock()
		return "", ErrDebugUnavailable
	}
	if s.ledger.Reward() < DebugCost {
		s.appendLog(fmt.Sprintf("> ERROR: Insufficient Bounty for AI Debug (-%d EXP required)", DebugCost))
		s.mu.Unlock()
		s.flush()
		return "", ErrInsufficientBounty
	}
	s.appendLog("> AI_DIAGNOSTIC_ROUTINE_INITIATED...")
	req := verify.Request{Code: s.code, Language: s.language, Description: s.puz.Description}
	s.mu.Unlock()
	s.flush()

	d, err := s.debugger.Debug(ctx, req)

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	if ferr := s.hintable(); ferr != nil {
		s.log.Debug().Err(ferr).Msg("dropping late diagnosis")
		return "", ferr
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("debug call failed")
		s.appendLog("> ERROR: AI CONNECTION FAILED")
		return "", err
	}
	if !s.ledger.Spend(DebugCost) {
		s.appendLog(fmt.Sprintf("> ERROR: Insufficient Bounty for AI Debug (-%d EXP required)", DebugCost))
		return "", ErrInsufficientBounty
	}
	s.appendLog(fmt.Sprintf("> ANALYSIS_COMPLETE (-%d EXP)", DebugCost))
	if d.Feedback != "" {
		s.appendLog(`> AI_HINT: "` + d.Feedback + `"`)
	}
	return d.Feedback, nil
}
