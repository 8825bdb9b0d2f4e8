package daily

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/codesiege/assets"
	"github.com/robalobadob/codesiege/internal/account"
	"github.com/robalobadob/codesiege/internal/database"
)

func TestIndex_Deterministic(t *testing.T) {
	day := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	later := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)

	i := Index(day, "salt", 7)
	assert.Equal(t, i, Index(later, "salt", 7), "same UTC day, same puzzle")
	assert.GreaterOrEqual(t, i, 0)
	assert.Less(t, i, 7)
	assert.Zero(t, Index(day, "salt", 0))
	assert.Equal(t, "2026-03-14", DateKey(day))
}

func TestIndex_VariesAcrossDays(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seen := map[int]bool{}
	for d := 0; d < 60; d++ {
		seen[Index(start.AddDate(0, 0, d), "salt", 5)] = true
	}
	assert.Greater(t, len(seen), 1)
}

type fixture struct {
	store *Store
	users *account.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := database.Open(database.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, assets.Migrations()))
	return fixture{store: NewStore(db), users: account.NewStore(db)}
}

func TestLeaderboard_OrderAndBestRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada, err := f.users.Create(ctx, "ada", "h", 0)
	require.NoError(t, err)
	bob, err := f.users.Create(ctx, "bob", "h", 0)
	require.NoError(t, err)
	cy, err := f.users.Create(ctx, "cy", "h", 0)
	require.NoError(t, err)

	const date, pid = "2026-03-14", "t1-f1"
	records := []Result{
		{SessionID: "s1", UserID: ada.ID, PuzzleID: pid, Date: date, Success: true, ElapsedMs: 9000, Errors: 1},
		{SessionID: "s2", UserID: ada.ID, PuzzleID: pid, Date: date, Success: true, ElapsedMs: 4000},
		{SessionID: "s3", UserID: bob.ID, PuzzleID: pid, Date: date, Success: true, ElapsedMs: 4000, Hints: 2},
		{SessionID: "s4", UserID: cy.ID, PuzzleID: pid, Date: date, Success: false, ElapsedMs: 100},
		{SessionID: "s5", UserID: cy.ID, PuzzleID: "other", Date: date, Success: true, ElapsedMs: 1},
		{SessionID: "s2", UserID: ada.ID, PuzzleID: pid, Date: date, Success: true, ElapsedMs: 1},
	}
	for _, r := range records {
		require.NoError(t, f.store.Record(ctx, r))
	}

	top, err := f.store.Leaderboard(ctx, date, pid, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "ada", top[0].Username)
	assert.Equal(t, int64(4000), top[0].ElapsedMs, "duplicate session id is ignored")
	assert.Equal(t, "bob", top[1].Username)
	assert.Equal(t, 2, top[1].Hints)

	solved, err := f.store.AlreadySolved(ctx, ada.ID, pid, date)
	require.NoError(t, err)
	assert.True(t, solved)
	solved, err = f.store.AlreadySolved(ctx, cy.ID, pid, date)
	require.NoError(t, err)
	assert.False(t, solved)
}
