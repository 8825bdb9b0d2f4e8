// internal/httpserver/routes_sessions.go
//
// HTTP routes for puzzle sessions. All routes require auth and only the
// owner may touch a session; anyone else gets 404.
//   - POST   /sessions                    → start a session for a catalogue puzzle
//   - GET    /sessions/{id}               → snapshot (blocks, reward, logs, result...)
//   - POST   /sessions/{id}/drag          → move a block, snapping to a neighbor
//   - POST   /sessions/{id}/submit        → local check, remote fallback when needed
//                                            (code mode: an absent "code" resubmits the stored text)
//   - POST   /sessions/{id}/hints         → offer the next hint (nothing spent yet)
//   - POST   /sessions/{id}/hints/confirm → buy the offered hint
//   - POST   /sessions/{id}/hints/cancel  → withdraw the offer
//   - POST   /sessions/{id}/debug         → paid diagnosis (code mode)
//   - DELETE /sessions/{id}               → close; a late verdict is ignored

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codesiege/internal/puzzle"
	"github.com/robalobadob/codesiege/internal/session"
)

func (s *Server) mountSessions(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleNewSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/drag", s.handleDrag)
			r.Post("/submit", s.handleSubmit)
			r.Post("/hints", s.handleRequestHint)
			r.Post("/hints/confirm", s.handleConfirmHint)
			r.Post("/hints/cancel", s.handleCancelHint)
			r.Post("/debug", s.handleDebug)
		})
	})
}

type newSessionReq struct {
	PuzzleID   string `json:"puzzleId"`
	GameMode   string `json:"gameMode"`
	Level      int    `json:"level"`
	Track      string `json:"track"`
	Difficulty string `json:"difficulty"`
	Language   string `json:"language"`
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	p, ok := s.catalog.Get(req.PuzzleID)
	if !ok {
		http.Error(w, `{"error":"unknown_puzzle"}`, http.StatusNotFound)
		return
	}
	me := userFrom(r)
	id := uuid.NewString()
	lang := req.Language
	if lang == "" {
		lang = s.cfg.DefaultLanguage
	}

	sess, err := session.New(session.Config{
		ID:          id,
		UserID:      me.ID,
		Puzzle:      p,
		GameMode:    req.GameMode,
		Level:       req.Level,
		Track:       req.Track,
		Difficulty:  req.Difficulty,
		Language:    lang,
		TimeLimit:   s.cfg.TimeLimit,
		SettleDelay: s.cfg.SettleDelay,
		Account:     s.users.For(me.ID),
		Verifier:    s.judge,
		Debugger:    s.judge,
		OnEvent:     s.onEvent(id, me.ID, p.ID),
	})
	if err != nil {
		log.Error().Err(err).Str("puzzle", p.ID).Msg("new session")
		http.Error(w, `{"error":"session_failed"}`, http.StatusInternalServerError)
		return
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		sess.Close()
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sess.View())
}

// owned loads the {id} session if it belongs to the caller.
func (s *Server) owned(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil || sess.UserID() != userFrom(r).ID {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.owned(w, r)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(sess.View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.owned(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), sess.ID()); err != nil {
		writeError(w, err)
		return
	}
	s.hub.closeSession(sess.ID())
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

type dragReq struct {
	BlockID string  `json:"blockId"`
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
}

type dragRes struct {
	Block      puzzle.Block `json:"block"`
	Snapped    bool         `json:"snapped"`
	NeighborID string       `json:"neighborId,omitempty"`
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.owned(w, r)
	if !ok {
		return
	}
	var req dragReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	res, err := sess.Drag(req.BlockID, puzzle.Vec{X: req.DX, Y: req.DY})
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(dragRes{Block: res.Block, Snapped: res.Snapped, NeighborID: res.Neighbor})
}

// codeReq.Code is nil when the field is absent; an explicit "" is an empty
// submission.
type codeReq struct {
	Code *string `json:"code"`
}

// decodeOptional accepts an empty body as the zero value.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type submitRes struct {
	Phase  session.Phase   `json:"phase"`
	Result *session.Result `json:"result,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.owned(w, r)
	if !ok {
		return
	}
	var req codeReq
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	var (
		phase session.Phase
		err   error
	)
	if req.Code != nil {
		phase, err = sess.SubmitCode(*req.Code)
	} else {
		phase, err = sess.Submit()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	v := sess.View()
	_ = json.NewEncoder(w).Encode(submitRes{Phase: phase, Result: v.Result})
}

type hintOffer struct {
	Tier int   `json:"tier"`
	Cost int64 `json:"cost"`
}

func (s *Server) handleRequestHint(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.owned(w, r)
	if !ok {
		return
	}
	h, err := sess.RequestHint(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(hintOffer{Tier: sess.View().Tier + 1, Cost: h.Cost})
}

type hintRes struct {
	Tier   int    `json:"tier"`
	Reward int64  `json:"reward"`
	Hint   string `json:"hint"`
}

func (s *Server) handleConfirmHint(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.owned(w, r)
	if !ok {
		return
	}
	h, tier, err := sess.ConfirmHint(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(hintRes{Tier: tier, Reward: sess.View().Reward, Hint: h.Text})
}

func (s *Server) handleCancelHint(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.owned(w, r)
	if !ok {
		return
	}
	sess.CancelHint()
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

type debugRes struct {
	Feedback string `json:"feedback"`
	Reward   int64  `json:"reward"`
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.owned(w, r)
	if !ok {
		return
	}
	var req codeReq
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	var code string
	if req.Code != nil {
		code = *req.Code
	}
	fb, err := sess.Debug(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(debugRes{Feedback: fb, Reward: sess.View().Reward})
}
