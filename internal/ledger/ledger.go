// internal/ledger/ledger.go
//
// Reward and hint ledger for a single puzzle attempt.
//
// Two stores are involved and never mixed:
//   - the local ledger (this package): current reward and hint tier;
//   - the player's account, reached only through the Account port.
//
// A purchase debits the account first and advances the local ledger only
// after the debit has returned successfully. A failed debit leaves both
// reward and tier untouched, so retrying can never grant a hint twice.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robalobadob/codesiege/internal/puzzle"
)

var (
	// ErrHintsExhausted is returned once every hint has been bought.
	ErrHintsExhausted = errors.New("all hints already purchased")
	// ErrInsufficientFunds is returned when the account cannot cover a hint.
	ErrInsufficientFunds = errors.New("insufficient balance for hint")
	// ErrPurchaseInFlight is returned when a purchase is already awaiting its debit.
	ErrPurchaseInFlight = errors.New("hint purchase already in progress")
)

// Account is the player's external experience balance.
type Account interface {
	// Balance returns the spendable balance.
	Balance(ctx context.Context) (int64, error)
	// Debit removes amount from the balance. It fails if the balance is
	// insufficient or the store cannot be reached.
	Debit(ctx context.Context, amount int64) error
}

// Ledger tracks reward and hint tier for one attempt. Reward only goes
// down and tier only goes up, bounded by the number of hints.
type Ledger struct {
	mu       sync.Mutex
	hints    []puzzle.Hint
	reward   int64
	tier     int
	inFlight bool
}

// New starts a ledger at the puzzle's base reward with no hints bought.
func New(base int64, hints []puzzle.Hint) *Ledger {
	return &Ledger{hints: append([]puzzle.Hint(nil), hints...), reward: base}
}

// Reward is the value a success would pay out now.
func (l *Ledger) Reward() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reward
}

// Tier is the number of hints bought so far.
func (l *Ledger) Tier() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tier
}

// Revealed returns the text of every purchased hint, in order.
func (l *Ledger) Revealed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, l.tier)
	for i := 0; i < l.tier; i++ {
		out[i] = l.hints[i].Text
	}
	return out
}

// Next returns the hint the next purchase would buy.
func (l *Ledger) Next() (puzzle.Hint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tier >= len(l.hints) {
		return puzzle.Hint{}, ErrHintsExhausted
	}
	return l.hints[l.tier], nil
}

// CheckFunds verifies the account can cover the next hint without
// spending anything.
func (l *Ledger) CheckFunds(ctx context.Context, acct Account) (puzzle.Hint, error) {
	next, err := l.Next()
	if err != nil {
		return puzzle.Hint{}, err
	}
	bal, err := acct.Balance(ctx)
	if err != nil {
		return puzzle.Hint{}, fmt.Errorf("read balance: %w", err)
	}
	if bal < next.Cost {
		return next, ErrInsufficientFunds
	}
	return next, nil
}

// Purchase buys the next hint: funds check, debit, then advance.
// It returns the purchased hint and its tier (1-based).
func (l *Ledger) Purchase(ctx context.Context, acct Account) (puzzle.Hint, int, error) {
	l.mu.Lock()
	if l.inFlight {
		l.mu.Unlock()
		return puzzle.Hint{}, 0, ErrPurchaseInFlight
	}
	if l.tier >= len(l.hints) {
		l.mu.Unlock()
		return puzzle.Hint{}, 0, ErrHintsExhausted
	}
	next := l.hints[l.tier]
	l.inFlight = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.inFlight = false
		l.mu.Unlock()
	}()

	bal, err := acct.Balance(ctx)
	if err != nil {
		return puzzle.Hint{}, 0, fmt.Errorf("read balance: %w", err)
	}
	if bal < next.Cost {
		return puzzle.Hint{}, 0, ErrInsufficientFunds
	}
	if err := acct.Debit(ctx, next.Cost); err != nil {
		return puzzle.Hint{}, 0, fmt.Errorf("debit %d: %w", next.Cost, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.tier++
	l.reward -= next.Cost
	if l.reward < 0 {
		l.reward = 0
	}
	return next, l.tier, nil
}

// Spend lowers the reward by amount without touching the account. It is
// used for charges paid out of the attempt's own bounty. It fails if the
// reward cannot cover amount.
func (l *Ledger) Spend(amount int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount < 0 || l.reward < amount {
		return false
	}
	l.reward -= amount
	return true
}
