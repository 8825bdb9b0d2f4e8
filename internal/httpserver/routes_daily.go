// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily puzzle.
//   - GET /daily             → today's puzzle summary (and whether the caller solved it)
//   - GET /daily/leaderboard → best successful runs for today (or ?date=YYYY-MM-DD)
//
// The daily puzzle is chosen deterministically from date + salt. Any session
// of that puzzle finished on that date counts toward the leaderboard.

package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codesiege/internal/catalog"
	"github.com/robalobadob/codesiege/internal/daily"
)

func (s *Server) mountDaily(r chi.Router) {
	r.Route("/daily", func(r chi.Router) {
		r.Get("/", s.handleDaily)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

// dailyFor returns the date key and catalogue entry for the day containing t.
func (s *Server) dailyFor(t time.Time) (string, catalog.Entry) {
	idx := daily.Index(t, s.cfg.DailySalt, s.catalog.Len())
	return daily.DateKey(t), s.catalog.At(idx)
}

type dailyRes struct {
	Date   string          `json:"date"`
	Puzzle catalog.Summary `json:"puzzle"`
	Solved bool            `json:"solved"`
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	date, e := s.dailyFor(s.now())
	res := dailyRes{Date: date, Puzzle: catalog.Summarize(e)}
	if me := userFrom(r); me != nil {
		solved, err := s.results.AlreadySolved(r.Context(), me.ID, e.ID, date)
		if err != nil {
			log.Warn().Err(err).Msg("daily solved check")
		}
		res.Solved = solved
	}
	_ = json.NewEncoder(w).Encode(res)
}

type lbRes struct {
	Date     string        `json:"date"`
	PuzzleID string        `json:"puzzleId"`
	Top      []daily.LBRow `json:"top"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	day := s.now()
	if q := r.URL.Query().Get("date"); q != "" {
		t, err := time.Parse("2006-01-02", q)
		if err != nil {
			http.Error(w, `{"error":"bad_date"}`, http.StatusBadRequest)
			return
		}
		day = t
	}
	date, e := s.dailyFor(day)
	rows, err := s.results.Leaderboard(r.Context(), date, e.ID, 20)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{Date: date, PuzzleID: e.ID, Top: rows})
}
