package daily

import (
	"context"
	"database/sql"
	"time"
)

// Result is one finished session, successful or not.
type Result struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	PuzzleID  string `json:"puzzleId"`
	Date      string `json:"date"`
	Success   bool   `json:"success"`
	Exp       int64  `json:"exp"`
	ElapsedMs int64  `json:"elapsedMs"`
	Errors    int    `json:"errors"`
	Hints     int    `json:"hints"`
}

// LBRow is one leaderboard line.
type LBRow struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	ElapsedMs int64  `json:"elapsedMs"`
	Errors    int    `json:"errors"`
	Hints     int    `json:"hints"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record stores r. A second result for the same session is ignored.
func (s *Store) Record(ctx context.Context, r Result) error {
	if r.Date == "" {
		r.Date = DateKey(time.Now())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO results
			(session_id, user_id, puzzle_id, date, success, exp, elapsed_ms, errors, hints)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.SessionID, r.UserID, r.PuzzleID, r.Date, r.Success, r.Exp, r.ElapsedMs, r.Errors, r.Hints,
	)
	return err
}

// AlreadySolved reports whether the user has a successful result for the
// puzzle on date.
func (s *Store) AlreadySolved(ctx context.Context, userID, puzzleID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM results WHERE user_id=? AND puzzle_id=? AND date=? AND success=1`,
		userID, puzzleID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// Leaderboard returns each player's best successful run of puzzleID on
// date, fastest first, then fewest errors, then fewest hints.
func (s *Store) Leaderboard(ctx context.Context, date, puzzleID string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.user_id, u.username, r.elapsed_ms, r.errors, r.hints
		FROM results r
		JOIN users u ON u.id = r.user_id
		WHERE r.date=? AND r.puzzle_id=? AND r.success=1
		  AND r.id = (
			SELECT r2.id FROM results r2
			WHERE r2.user_id = r.user_id AND r2.date = r.date AND r2.puzzle_id = r.puzzle_id AND r2.success=1
			ORDER BY r2.elapsed_ms ASC, r2.errors ASC, r2.hints ASC, r2.id ASC
			LIMIT 1)
		ORDER BY r.elapsed_ms ASC, r.errors ASC, r.hints ASC, r.created_at ASC
		LIMIT ?`, date, puzzleID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.ElapsedMs, &r.Errors, &r.Hints); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
