// internal/httpserver/server.go
//
// HTTP server wiring for the puzzle backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/puzzles".
//   - Auth endpoints: /auth/* (see auth.go).
//   - Session endpoints (require auth): /sessions/* (see routes_sessions.go).
//   - Live session feed over websocket: /sessions/{id}/stream (see stream.go).
//   - Daily puzzle endpoints (optional auth): /daily (see routes_daily.go).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - The stream route sits outside the timeout/JSON group; it hijacks the connection.
//   - Completion events credit the player's account and are stored as results.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codesiege/internal/account"
	"github.com/robalobadob/codesiege/internal/catalog"
	"github.com/robalobadob/codesiege/internal/config"
	"github.com/robalobadob/codesiege/internal/daily"
	"github.com/robalobadob/codesiege/internal/ledger"
	"github.com/robalobadob/codesiege/internal/session"
	"github.com/robalobadob/codesiege/internal/store"
	"github.com/robalobadob/codesiege/internal/verify"
)

// Judge is the remote service sessions fall back to.
type Judge interface {
	session.Verifier
	session.Debugger
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Config   config.Config
	Users    *account.Store
	Results  *daily.Store
	Sessions store.Store
	Catalog  *catalog.Catalog
	Judge    Judge
}

// Server bundles router, live sessions and persistence.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	users    *account.Store
	results  *daily.Store
	sessions store.Store
	catalog  *catalog.Catalog
	judge    Judge
	hub      *hub
	now      func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      d.Config,
		users:    d.Users,
		results:  d.Results,
		sessions: d.Sessions,
		catalog:  d.Catalog,
		judge:    d.Judge,
		hub:      newHub(),
		now:      time.Now,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	// websocket feed: no timeout, no JSON content type
	s.r.With(s.requireAuth()).Get("/sessions/{id}/stream", s.handleStream)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.handlerTimeout()))
		r.Use(jsonContentType)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"codesiege","endpoints":["/health","/puzzles","/auth/*","/sessions/*","/daily"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/puzzles", s.handlePuzzles)

		s.mountAuthRoutes(r)
		s.mountSessions(r.With(s.requireAuth()))
		s.mountDaily(r.With(s.withOptionalAuth()))
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// handlerTimeout leaves room for one verifier round trip.
func (s *Server) handlerTimeout() time.Duration {
	t := s.cfg.VerifierTimeout + 5*time.Second
	if t < 10*time.Second {
		t = 10 * time.Second
	}
	return t
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ catalogue ----------------------------------

func (s *Server) handlePuzzles(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]any{"puzzles": s.catalog.Summaries()})
}

// ------------------------------ errors -------------------------------------

// writeError maps domain errors onto status codes and the JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, session.ErrPending):
		status, code = http.StatusConflict, "pending"
	case errors.Is(err, session.ErrFinished):
		status, code = http.StatusConflict, "finished"
	case errors.Is(err, session.ErrClosed):
		status, code = http.StatusGone, "closed"
	case errors.Is(err, session.ErrWrongMode):
		status, code = http.StatusConflict, "wrong_mode"
	case errors.Is(err, session.ErrUnknownBlock):
		status, code = http.StatusBadRequest, "unknown_block"
	case errors.Is(err, session.ErrNoHintOffer):
		status, code = http.StatusConflict, "no_hint_offer"
	case errors.Is(err, session.ErrNothingToDebug):
		status, code = http.StatusBadRequest, "no_code"
	case errors.Is(err, session.ErrDebugUnavailable):
		status, code = http.StatusServiceUnavailable, "debug_unavailable"
	case errors.Is(err, session.ErrInsufficientBounty):
		status, code = http.StatusPaymentRequired, "insufficient_bounty"
	case errors.Is(err, ledger.ErrHintsExhausted):
		status, code = http.StatusConflict, "hints_exhausted"
	case errors.Is(err, ledger.ErrPurchaseInFlight):
		status, code = http.StatusConflict, "purchase_in_flight"
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, account.ErrInsufficientBalance):
		status, code = http.StatusPaymentRequired, "insufficient_exp"
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, verify.ErrUnavailable):
		status, code = http.StatusBadGateway, "verifier_unavailable"
		log.Warn().Err(err).Msg("verifier call failed")
	default:
		log.Error().Err(err).Msg("request failed")
	}
	http.Error(w, `{"error":"`+code+`"}`, status)
}

// ---------------------------- completions ----------------------------------

// onEvent fans session events out to stream subscribers and settles the
// account when the attempt completes.
func (s *Server) onEvent(sessionID, userID, puzzleID string) session.Listener {
	return func(ev session.Event) {
		s.hub.publish(sessionID, ev)
		if ev.Type == session.EventComplete && ev.Completion != nil {
			s.recordCompletion(sessionID, userID, puzzleID, *ev.Completion)
		}
	}
}

func (s *Server) recordCompletion(sessionID, userID, puzzleID string, c session.Completion) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l := log.With().Str("session", sessionID).Str("user", userID).Logger()

	res := daily.Result{
		SessionID: sessionID,
		UserID:    userID,
		PuzzleID:  puzzleID,
		Date:      daily.DateKey(s.now()),
		Success:   c.Success,
	}
	if c.Metrics != nil {
		res.ElapsedMs = int64(c.Metrics.Time * 1000)
		res.Errors = c.Metrics.Errors
		res.Hints = c.Metrics.Hints
	}
	if c.Success && c.Rewards != nil {
		res.Exp = c.Rewards.Exp
		if bal, err := s.users.Credit(ctx, userID, c.Rewards.Exp); err != nil {
			l.Warn().Err(err).Int64("exp", c.Rewards.Exp).Msg("credit reward")
		} else {
			l.Info().Int64("exp", c.Rewards.Exp).Int64("balance", bal).Msg("reward credited")
		}
	}
	if err := s.results.Record(ctx, res); err != nil {
		l.Warn().Err(err).Msg("record result")
	}
}
