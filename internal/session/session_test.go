package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/codesiege/internal/ledger"
	"github.com/robalobadob/codesiege/internal/puzzle"
	"github.com/robalobadob/codesiege/internal/verify"
)

// ---------------------------------------------------------------- fakes

type fakeAccount struct {
	mu       sync.Mutex
	balance  int64
	debits   []int64
	debitErr error

	// when gate is set, Debit signals entered and waits on gate.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAccount) Balance(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeAccount) Debit(_ context.Context, amount int64) error {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return f.debitErr
	}
	f.balance -= amount
	f.debits = append(f.debits, amount)
	return nil
}

type verifyReply struct {
	v   verify.Verdict
	err error
}

// fakeVerifier reports each call on calls and blocks until a reply is
// sent or the context ends.
type fakeVerifier struct {
	calls   chan verify.Request
	replies chan verifyReply
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{calls: make(chan verify.Request, 8), replies: make(chan verifyReply, 1)}
}

func (f *fakeVerifier) Verify(ctx context.Context, req verify.Request) (verify.Verdict, error) {
	f.calls <- req
	select {
	case r := <-f.replies:
		return r.v, r.err
	case <-ctx.Done():
		return verify.Verdict{}, ctx.Err()
	}
}

type fakeDebugger struct {
	calls    atomic.Int32
	feedback string
	err      error

	// when gate is set, Debug signals entered and waits on gate.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeDebugger) Debug(context.Context, verify.Request) (verify.Diagnosis, error) {
	f.calls.Add(1)
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	if f.err != nil {
		return verify.Diagnosis{}, f.err
	}
	return verify.Diagnosis{Feedback: f.feedback}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) completions() []Completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Completion
	for _, ev := range r.events {
		if ev.Type == EventComplete {
			out = append(out, *ev.Completion)
		}
	}
	return out
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// -------------------------------------------------------------- fixture

func helloPuzzle() *puzzle.Puzzle {
	return &puzzle.Puzzle{
		ID:             "t1-f1",
		Description:    `Arrange the blocks to print "Hello World" to the console.`,
		ExpectedOutput: "Hello World",
		InitialBlocks: []puzzle.BlockDef{
			{ID: "b2", Content: "print", Type: puzzle.KindFunction},
			{ID: "b1", Content: `("Hello World")`, Type: puzzle.KindValue},
		},
		CorrectSequence: []string{"b2", "b1"},
		Rewards:         puzzle.Rewards{Exp: 100, Gems: 10},
		Hints: []puzzle.Hint{
			{Cost: 10, Text: "The 'print' block is used to output text to the console."},
			{Cost: 20, Text: "Try placing the function block before the string value."},
			{Cost: 50, Text: `Solution: Connect [print] -> [("Hello World")]`},
		},
	}
}

type fixture struct {
	s    *Session
	acct *fakeAccount
	ver  *fakeVerifier
	dbg  *fakeDebugger
	rec  *recorder
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		acct: &fakeAccount{balance: 1000},
		ver:  newFakeVerifier(),
		dbg:  &fakeDebugger{feedback: "Put print first."},
		rec:  &recorder{},
	}
	cfg := Config{
		ID:       "sess-1",
		UserID:   "user-1",
		Puzzle:   helloPuzzle(),
		Account:  f.acct,
		Verifier: f.ver,
		Debugger: f.dbg,
		OnEvent:  f.rec.listen,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	f.s = s
	t.Cleanup(func() {
		s.Close()
		s.Wait()
	})
	return f
}

func (f *fixture) join(t *testing.T) {
	t.Helper()
	res, err := f.s.Drag("b1", puzzle.Vec{X: -55, Y: 4})
	require.NoError(t, err)
	require.True(t, res.Snapped)
}

func (f *fixture) awaitCall(t *testing.T) verify.Request {
	t.Helper()
	select {
	case req := <-f.ver.calls:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no verification call")
		return verify.Request{}
	}
}

func (f *fixture) reply(v verify.Verdict, err error) {
	f.ver.replies <- verifyReply{v: v, err: err}
	f.s.Wait()
}

// ---------------------------------------------------------------- tests

func TestNew_InitialState(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Track = "Intermediate"; c.Difficulty = "Hard" })
	v := f.s.View()

	assert.Equal(t, ModeJigsaw, v.Mode)
	assert.Equal(t, PhaseIdle, v.Phase)
	assert.Equal(t, int64(100), v.Reward)
	assert.Equal(t, 0, v.Tier)
	assert.Equal(t, 3, v.HintCount)
	require.NotNil(t, v.NextHintCost)
	assert.Equal(t, int64(10), *v.NextHintCost)
	assert.Equal(t, []string{
		"> System initialized...",
		"> Track: Intermediate | Hard",
		"> Waiting for input sequence...",
	}, v.Logs)
	require.Len(t, v.Blocks, 2)
	assert.Equal(t, puzzle.Tab, v.Blocks[0].Connectors.Right)
}

func TestNew_RejectsInvalidPuzzle(t *testing.T) {
	p := helloPuzzle()
	p.CorrectSequence = []string{"nope"}
	_, err := New(Config{Puzzle: p, Account: &fakeAccount{}, Verifier: newFakeVerifier()})
	require.Error(t, err)
}

func TestSubmit_LocalMatchSkipsRemote(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t)

	phase, err := f.s.Submit()
	require.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, phase)
	assert.Empty(t, f.ver.calls)

	comps := f.rec.completions()
	require.Len(t, comps, 1)
	assert.True(t, comps[0].Success)
	assert.Equal(t, int64(100), comps[0].Rewards.Exp)
	assert.Equal(t, int64(10), comps[0].Rewards.Gems)
	assert.Equal(t, 0, comps[0].Metrics.Errors)
	assert.Equal(t, "> Execution Successful.", f.s.View().Result.Message)
}

func TestSubmit_MismatchGoesRemoteWithBuiltCode(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Language = "Python" })

	phase, err := f.s.Submit()
	require.NoError(t, err)
	assert.Equal(t, PhasePending, phase)
	assert.Equal(t, ResultInfo, f.s.View().Result.Type)

	req := f.awaitCall(t)
	assert.Equal(t, "print\n(\"Hello World\")", req.Code)
	assert.Equal(t, "Python", req.Language)
	assert.Equal(t, "Hello World", req.ExpectedOutput)
	assert.Equal(t, helloPuzzle().Description, req.Description)

	f.reply(verify.Verdict{Correct: true}, nil)
	v := f.s.View()
	assert.Equal(t, PhaseSucceeded, v.Phase)
	assert.Equal(t, "> Logic Verified. Execution Successful.", v.Result.Message)

	comps := f.rec.completions()
	require.Len(t, comps, 1)
	assert.True(t, comps[0].Success)
	assert.Equal(t, 1, comps[0].Metrics.Errors, "the failed local check still counts")
}

func TestSubmit_RemoteRejectsRunsDiagnosticAndAllowsRetry(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.s.Submit()
	require.NoError(t, err)
	f.awaitCall(t)
	f.reply(verify.Verdict{Correct: false, Message: "Blocks are not connected"}, nil)

	v := f.s.View()
	assert.Equal(t, PhaseFailed, v.Phase)
	assert.Equal(t, ResultError, v.Result.Type)
	assert.Equal(t, "> Error: Blocks are not connected (Check terminal for hint)", v.Result.Message)
	assert.Equal(t, int32(1), f.dbg.calls.Load())
	assert.Contains(t, v.Logs, "> ANALYZING ERROR PATTERNS...")
	assert.Contains(t, v.Logs, "> [AI ASSISTANT]: Put print first.")
	assert.Empty(t, f.rec.completions())

	f.join(t)
	phase, err := f.s.Submit()
	require.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, phase)
	comps := f.rec.completions()
	require.Len(t, comps, 1)
	assert.Equal(t, 1, comps[0].Metrics.Errors)
}

func TestSubmit_RemoteRejectWithoutMessageUsesWittyLine(t *testing.T) {
	f := newFixture(t, nil)
	_, _ = f.s.Submit()
	f.awaitCall(t)
	f.reply(verify.Verdict{Correct: false}, nil)

	msg := f.s.View().Result.Message
	assert.True(t, strings.HasPrefix(msg, "> Error: "))
	assert.True(t, strings.HasSuffix(msg, " (Check terminal for hint)"))
}

func TestSubmit_DiagnosticFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, nil)
	f.dbg.err = errors.New("neural engine offline")

	_, _ = f.s.Submit()
	f.awaitCall(t)
	f.reply(verify.Verdict{Correct: false, Message: "no"}, nil)

	v := f.s.View()
	assert.Equal(t, PhaseFailed, v.Phase)
	assert.Contains(t, v.Logs, "> SYSTEM: Unable to connect to neural engine.")
}

func TestSubmit_TransportErrorSkipsDiagnostic(t *testing.T) {
	f := newFixture(t, nil)

	_, _ = f.s.Submit()
	f.awaitCall(t)
	f.reply(verify.Verdict{}, errors.New("connection refused"))

	v := f.s.View()
	assert.Equal(t, PhaseFailed, v.Phase)
	assert.Equal(t, "> Error: System Check Failed. Please retry.", v.Result.Message)
	assert.Equal(t, int32(0), f.dbg.calls.Load())

	phase, err := f.s.Submit()
	require.NoError(t, err, "transport failure leaves the puzzle resubmittable")
	assert.Equal(t, PhasePending, phase)
	f.awaitCall(t)
	f.reply(verify.Verdict{Correct: false, Message: "x"}, nil)
	assert.Equal(t, 2, f.s.View().Attempts)
}

func TestSubmit_RejectedWhilePending(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.s.Submit()
	require.NoError(t, err)
	f.awaitCall(t)

	phase, err := f.s.Submit()
	require.ErrorIs(t, err, ErrPending)
	assert.Equal(t, PhasePending, phase)
	assert.Empty(t, f.ver.calls, "exactly one request in flight")
	assert.Equal(t, 1, f.s.View().Attempts)

	f.reply(verify.Verdict{Correct: true}, nil)
}

func TestExpire_OverridesPendingVerdict(t *testing.T) {
	f := newFixture(t, nil)

	_, _ = f.s.Submit()
	f.awaitCall(t)

	f.s.Expire()
	v := f.s.View()
	assert.Equal(t, PhaseTimedOut, v.Phase)
	assert.Equal(t, "> CRITICAL FAILURE: TIME EXPIRED", v.Result.Message)

	f.reply(verify.Verdict{Correct: true}, nil)
	assert.Equal(t, PhaseTimedOut, f.s.Phase(), "late verdict must not flip a finalized attempt")

	comps := f.rec.completions()
	require.Len(t, comps, 1)
	assert.False(t, comps[0].Success)
	assert.Nil(t, comps[0].Rewards)

	_, err := f.s.Submit()
	assert.ErrorIs(t, err, ErrFinished)
	f.s.Expire()
	assert.Len(t, f.rec.completions(), 1)
}

func TestExpire_AfterSuccessIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t)
	_, _ = f.s.Submit()

	f.s.Expire()
	assert.Equal(t, PhaseSucceeded, f.s.Phase())
	assert.Len(t, f.rec.completions(), 1)

	_, err := f.s.Submit()
	assert.ErrorIs(t, err, ErrFinished)
}

func TestCountdown_ExpiresSession(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.TimeLimit = 40 * time.Millisecond
		c.WarnAt = 20 * time.Millisecond
	})
	require.Eventually(t, func() bool { return f.s.Phase() == PhaseTimedOut }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.rec.completions()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.rec.count(EventWarning))
	assert.Contains(t, f.s.Logs(), "> WARNING: 0 seconds remaining.")
}

func TestClose_DropsLateVerdict(t *testing.T) {
	f := newFixture(t, nil)
	_, _ = f.s.Submit()
	f.awaitCall(t)

	f.s.Close()
	f.s.Wait()

	assert.Equal(t, PhasePending, f.s.Phase())
	assert.Empty(t, f.rec.completions())
	_, err := f.s.Submit()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.s.Drag("b1", puzzle.Vec{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSettleDelay_CompletionFiresOnceAfterDelay(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.SettleDelay = 30 * time.Millisecond })
	f.join(t)

	phase, err := f.s.Submit()
	require.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, phase)
	assert.Empty(t, f.rec.completions(), "completion waits for the settle delay")

	f.s.Wait()
	comps := f.rec.completions()
	require.Len(t, comps, 1)
	assert.GreaterOrEqual(t, comps[0].Metrics.Time, 0.03)
}

func TestDrag_EmitsConnectOnSnap(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.s.Drag("b1", puzzle.Vec{X: 300, Y: 300})
	require.NoError(t, err)
	assert.False(t, res.Snapped)
	assert.Equal(t, 0, f.rec.count(EventConnect))

	res, err = f.s.Drag("b1", puzzle.Vec{X: -350, Y: -290})
	require.NoError(t, err)
	assert.True(t, res.Snapped)
	assert.Equal(t, "b2", res.Neighbor)
	assert.Equal(t, puzzle.Vec{X: 50 + puzzle.BlockWidth, Y: 100}, res.Block.Position)
	assert.Equal(t, 1, f.rec.count(EventConnect))

	_, err = f.s.Drag("zz", puzzle.Vec{})
	assert.ErrorIs(t, err, ErrUnknownBlock)
}

func TestHints_PurchaseShrinksPayout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	offer, err := f.s.RequestHint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), offer.Cost)
	assert.Empty(t, f.acct.debits, "requesting spends nothing")

	h, tier, err := f.s.ConfirmHint(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tier)
	assert.Equal(t, helloPuzzle().Hints[0].Text, h.Text)
	assert.Equal(t, []int64{10}, f.acct.debits)

	v := f.s.View()
	assert.Equal(t, int64(90), v.Reward)
	assert.Equal(t, []string{h.Text}, v.Hints)
	assert.Contains(t, v.Logs, "> HINT_REQ_ACK... -10 EXP (User Balance)")
	assert.Contains(t, v.Logs, `> SYSTEM_MSG: "`+h.Text+`"`)

	f.join(t)
	_, _ = f.s.Submit()
	comps := f.rec.completions()
	require.Len(t, comps, 1)
	assert.Equal(t, int64(90), comps[0].Rewards.Exp)
	assert.Equal(t, 1, comps[0].Metrics.Hints)
}

func TestHints_ConfirmWithoutOffer(t *testing.T) {
	f := newFixture(t, nil)
	_, _, err := f.s.ConfirmHint(context.Background())
	assert.ErrorIs(t, err, ErrNoHintOffer)

	_, err = f.s.RequestHint(context.Background())
	require.NoError(t, err)
	f.s.CancelHint()
	_, _, err = f.s.ConfirmHint(context.Background())
	assert.ErrorIs(t, err, ErrNoHintOffer)
}

func TestHints_CapRejectsWithoutDebit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.s.RequestHint(ctx)
		require.NoError(t, err)
		_, _, err = f.s.ConfirmHint(ctx)
		require.NoError(t, err)
	}
	logs := len(f.s.Logs())

	_, err := f.s.RequestHint(ctx)
	require.ErrorIs(t, err, ledger.ErrHintsExhausted)
	assert.Len(t, f.acct.debits, 3)
	assert.Len(t, f.s.Logs(), logs, "no log entry for a rejected purchase")
	assert.Equal(t, 3, f.s.View().Tier)
	assert.Nil(t, f.s.View().NextHintCost)
}

func TestHints_InsufficientBalanceRejectedBeforeConfirm(t *testing.T) {
	f := newFixture(t, nil)
	f.acct.balance = 5

	_, err := f.s.RequestHint(context.Background())
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	v := f.s.View()
	assert.Equal(t, int64(100), v.Reward)
	assert.Equal(t, 0, v.Tier)
	assert.Contains(t, v.Logs, "> ERROR: Insufficient Global EXP for Hint (-10 EXP required)")
	_, _, err = f.s.ConfirmHint(context.Background())
	assert.ErrorIs(t, err, ErrNoHintOffer)
}

func TestHints_DebitFailureKeepsState(t *testing.T) {
	f := newFixture(t, nil)
	f.acct.debitErr = errors.New("ledger unreachable")
	ctx := context.Background()

	_, err := f.s.RequestHint(ctx)
	require.NoError(t, err)
	_, _, err = f.s.ConfirmHint(ctx)
	require.Error(t, err)

	v := f.s.View()
	assert.Equal(t, int64(100), v.Reward)
	assert.Equal(t, 0, v.Tier)
	assert.Contains(t, v.Logs, "> ERROR: Transaction Failed")
}

func TestHints_RejectedAfterTimeout(t *testing.T) {
	f := newFixture(t, nil)
	f.s.Expire()
	_, err := f.s.RequestHint(context.Background())
	assert.ErrorIs(t, err, ErrFinished)
}

func codeFixture(t *testing.T) *fixture {
	return newFixture(t, func(c *Config) { c.GameMode = GameModeText })
}

// heldDebug starts a Debug call that blocks inside the debugger until the
// returned release func is called; the call's error arrives on the channel.
func (f *fixture) heldDebug(t *testing.T, code string) (release func(), done <-chan error) {
	t.Helper()
	f.dbg.feedback = "late"
	f.dbg.gate = make(chan struct{})
	f.dbg.entered = make(chan struct{}, 1)
	errc := make(chan error, 1)
	go func() {
		_, err := f.s.Debug(context.Background(), code)
		errc <- err
	}()
	select {
	case <-f.dbg.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("debug call never started")
	}
	return func() { close(f.dbg.gate) }, errc
}

func awaitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return")
		return nil
	}
}

func TestCodeMode_LenientTextMatch(t *testing.T) {
	f := codeFixture(t)
	assert.Equal(t, ModeCode, f.s.Mode())
	assert.Empty(t, f.s.View().Blocks)

	_, err := f.s.Drag("b1", puzzle.Vec{})
	assert.ErrorIs(t, err, ErrWrongMode)

	phase, err := f.s.SubmitCode("print ( \"Hello World\" )\n")
	require.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, phase)
	assert.Empty(t, f.ver.calls)
}

func TestCodeMode_MismatchSendsTypedCode(t *testing.T) {
	f := codeFixture(t)
	_, err := f.s.SubmitCode("msg = 'Hello World'\nprint(msg)")
	require.NoError(t, err)
	req := f.awaitCall(t)
	assert.Equal(t, "msg = 'Hello World'\nprint(msg)", req.Code)
	f.reply(verify.Verdict{Correct: true}, nil)
	assert.Equal(t, PhaseSucceeded, f.s.Phase())
}

func TestSubmitCode_WrongMode(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.s.SubmitCode("print")
	assert.ErrorIs(t, err, ErrWrongMode)
}

func TestDebug_ChargesBountyOnAnswer(t *testing.T) {
	f := codeFixture(t)
	ctx := context.Background()

	fb, err := f.s.Debug(ctx, "prnt('Hello World')")
	require.NoError(t, err)
	assert.Equal(t, "Put print first.", fb)
	assert.Equal(t, int64(50), f.s.View().Reward)
	logs := f.s.Logs()
	assert.Contains(t, logs, "> AI_DIAGNOSTIC_ROUTINE_INITIATED...")
	assert.Contains(t, logs, "> ANALYSIS_COMPLETE (-50 EXP)")
	assert.Contains(t, logs, `> AI_HINT: "Put print first."`)

	_, err = f.s.Debug(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.s.View().Reward)

	_, err = f.s.Debug(ctx, "")
	assert.ErrorIs(t, err, ErrInsufficientBounty)
	assert.Equal(t, int32(2), f.dbg.calls.Load())
}

func TestDebug_FailureDoesNotCharge(t *testing.T) {
	f := codeFixture(t)
	f.dbg.err = errors.New("down")

	_, err := f.s.Debug(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int64(100), f.s.View().Reward)
	assert.Contains(t, f.s.Logs(), "> ERROR: AI CONNECTION FAILED")
}

func TestDebug_LateAnswerAfterSuccessKeepsPayout(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.GameMode = GameModeText
		c.SettleDelay = 100 * time.Millisecond
	})
	release, done := f.heldDebug(t, "prnt")

	phase, err := f.s.SubmitCode(`print("Hello World")`)
	require.NoError(t, err)
	require.Equal(t, PhaseSucceeded, phase)

	release()
	assert.ErrorIs(t, awaitErr(t, done), ErrFinished)
	f.s.Wait()

	comps := f.rec.completions()
	require.Len(t, comps, 1)
	assert.Equal(t, int64(100), comps[0].Rewards.Exp)
	assert.Equal(t, int64(100), f.s.View().Reward)
	assert.NotContains(t, f.s.Logs(), "> ANALYSIS_COMPLETE (-50 EXP)")
	assert.NotContains(t, f.s.Logs(), `> AI_HINT: "late"`)
}

func TestDebug_LateAnswerAfterTimeoutIsDropped(t *testing.T) {
	f := codeFixture(t)
	release, done := f.heldDebug(t, "prnt")

	f.s.Expire()
	release()
	assert.ErrorIs(t, awaitErr(t, done), ErrFinished)
	assert.Equal(t, int64(100), f.s.View().Reward)
	assert.NotContains(t, f.s.Logs(), `> AI_HINT: "late"`)
}

func TestDebug_LateAnswerAfterCloseIsDropped(t *testing.T) {
	f := codeFixture(t)
	release, done := f.heldDebug(t, "prnt")

	f.s.Close()
	release()
	assert.ErrorIs(t, awaitErr(t, done), ErrClosed)
	assert.Equal(t, int64(100), f.s.View().Reward)
	logs := f.s.Logs()
	assert.Equal(t, "> AI_DIAGNOSTIC_ROUTINE_INITIATED...", logs[len(logs)-1])
}

func TestHints_PurchaseDuringSettleKeepsPayout(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.SettleDelay = 100 * time.Millisecond })
	ctx := context.Background()
	_, err := f.s.RequestHint(ctx)
	require.NoError(t, err)

	f.acct.gate = make(chan struct{})
	f.acct.entered = make(chan struct{}, 1)
	errc := make(chan error, 1)
	go func() {
		_, _, err := f.s.ConfirmHint(ctx)
		errc <- err
	}()
	<-f.acct.entered

	f.join(t)
	phase, err := f.s.Submit()
	require.NoError(t, err)
	require.Equal(t, PhaseSucceeded, phase)

	close(f.acct.gate)
	require.NoError(t, awaitErr(t, errc))
	f.s.Wait()

	comps := f.rec.completions()
	require.Len(t, comps, 1)
	assert.Equal(t, int64(100), comps[0].Rewards.Exp)
	assert.Equal(t, 0, comps[0].Metrics.Hints)
}

func TestDebug_BlockModeUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.s.Debug(context.Background(), "x")
	assert.ErrorIs(t, err, ErrWrongMode)
}

func TestBrickMode_HidesConnectors(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.GameMode = GameModeBlocks })
	for _, b := range f.s.View().Blocks {
		assert.Equal(t, puzzle.Connectors{}, b.Connectors)
	}
}

func TestResolveMode(t *testing.T) {
	cases := []struct {
		gameMode  string
		level     int
		hasBlocks bool
		want      Mode
	}{
		{"", 1, true, ModeJigsaw},
		{"", 11, true, ModeBrick},
		{"", 21, true, ModeCode},
		{"", 1, false, ModeCode},
		{GameModeText, 1, true, ModeCode},
		{GameModeBlocks, 30, true, ModeBrick},
		{GameModeBlocks, 1, false, ModeCode},
		{GameModeJigsaw, 30, true, ModeJigsaw},
		{GameModeJigsaw, 1, false, ModeCode},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveMode(tc.gameMode, tc.level, tc.hasBlocks), "%+v", tc)
	}
}
